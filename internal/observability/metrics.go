package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchesTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "emergency_dispatch", Name: "dispatches_total", Help: "Total successful unit assignments"})
	DispatchNoUnits    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "emergency_dispatch", Name: "dispatch_no_units_total", Help: "Dispatch attempts that found no available unit"})
	ReservationRaces   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "emergency_dispatch", Name: "reservation_races_total", Help: "Reservations lost to a concurrent booking and retried"})
	PositionUpdates    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "emergency_dispatch", Name: "position_updates_total", Help: "Unit position reports ingested"})
	StaleUpdates       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "emergency_dispatch", Name: "stale_updates_total", Help: "Position reports for stopped or unknown tracking sessions"})
	ActiveSessions     = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "emergency_dispatch", Name: "tracking_sessions_active", Help: "Tracking sessions currently open"})
	RouteRefinements   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "emergency_dispatch", Name: "route_refinements_total", Help: "Calls made to the external routing provider"})
	RouteRefineErrors  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "emergency_dispatch", Name: "route_refinement_errors_total", Help: "Routing provider calls that failed"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "emergency_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "emergency_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
