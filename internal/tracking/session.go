package tracking

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/example/emergency-dispatch/internal/geo"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/observability"
	"github.com/example/emergency-dispatch/internal/routing"
)

// DefaultRefreshInterval bounds how often a session asks the routing
// provider for a refined ETA.
const DefaultRefreshInterval = 10 * time.Second

// Session consolidates position updates for one active booking into
// tracking snapshots. Straight-line distance is recomputed on every
// update; the routed ETA is refreshed at most once per refresh interval
// and scaled by the current straight-line distance in between.
type Session struct {
	bookingID string
	unitID    string
	pickup    models.Coord
	provider  routing.Provider
	refresh   time.Duration
	speedKmh  float64
	logger    *slog.Logger

	mu          sync.Mutex
	stopped     bool
	last        *models.TrackingSnapshot
	lastRoute   routing.Route
	lastRouteAt time.Time
}

func newSession(b models.Booking, provider routing.Provider, refresh time.Duration, speedKmh float64, logger *slog.Logger) *Session {
	if refresh <= 0 {
		refresh = DefaultRefreshInterval
	}
	if speedKmh <= 0 {
		speedKmh = geo.DefaultSpeedKmh
	}
	return &Session{
		bookingID: b.ID,
		unitID:    b.UnitID,
		pickup:    b.Pickup,
		provider:  provider,
		refresh:   refresh,
		speedKmh:  speedKmh,
		logger:    logger,
	}
}

// Ingest folds a unit position into a fresh snapshot.
func (s *Session) Ingest(pos models.Coord) (models.TrackingSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return models.TrackingSnapshot{}, ErrStaleSession
	}

	dist := geo.DistanceKm(pos, s.pickup)
	s.maybeRefineRoute(pos)

	snap := models.TrackingSnapshot{
		BookingID:   s.bookingID,
		UnitID:      s.unitID,
		Pos:         pos,
		DistanceKm:  dist,
		ETAMinutes:  s.etaMinutes(dist),
		GeneratedAt: time.Now(),
	}
	s.last = &snap
	return snap, nil
}

// maybeRefineRoute consults the routing provider at a bounded rate. The
// attempt timestamp advances even on failure so a flapping provider is
// not hammered. Caller holds s.mu.
func (s *Session) maybeRefineRoute(pos models.Coord) {
	if s.provider == nil {
		return
	}
	if !s.lastRouteAt.IsZero() && time.Since(s.lastRouteAt) < s.refresh {
		return
	}
	s.lastRouteAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	observability.RouteRefinements.Inc()
	r, err := s.provider.Route(ctx, pos, s.pickup)
	if err != nil {
		observability.RouteRefineErrors.Inc()
		s.logger.Warn("route refinement failed", "booking_id", s.bookingID, "error", err)
		return
	}
	s.lastRoute = r
}

// etaMinutes scales the last routed ETA by the current straight-line
// distance, falling back to the linear estimate before the first routed
// result arrives. Caller holds s.mu.
func (s *Session) etaMinutes(dist float64) int {
	if s.lastRoute.DistanceKm > 0 {
		eta := int(math.Round(float64(s.lastRoute.ETAMinutes) * dist / s.lastRoute.DistanceKm))
		if eta < 0 {
			eta = 0
		}
		return eta
	}
	return geo.ETAMinutes(dist, s.speedKmh)
}

// Latest returns the most recent snapshot, or false before any update.
func (s *Session) Latest() (models.TrackingSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return models.TrackingSnapshot{}, false
	}
	return *s.last, true
}

func (s *Session) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
