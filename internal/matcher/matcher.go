package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/example/emergency-dispatch/internal/geo"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/observability"
	"github.com/example/emergency-dispatch/internal/registry"
)

// ErrNoUnitsAvailable means every candidate was taken or the fleet is idle
// elsewhere. Transient; callers may retry on the next availability change.
var ErrNoUnitsAvailable = errors.New("no units available")

// Units is the registry surface the matcher needs.
type Units interface {
	ListAvailable() []models.Unit
	Reserve(unitID, bookingID string) (models.Unit, error)
}

// Assignment is a successfully reserved unit plus the straight-line
// estimate used for the caller's immediate ETA.
type Assignment struct {
	Unit       models.Unit
	DistanceKm float64
	ETAMinutes int
}

type Matcher struct {
	Units       Units
	AvgSpeedKmh float64
	Logger      *slog.Logger
}

func New(units Units, avgSpeedKmh float64, logger *slog.Logger) *Matcher {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = geo.DefaultSpeedKmh
	}
	return &Matcher{Units: units, AvgSpeedKmh: avgSpeedKmh, Logger: logger}
}

// FindAndReserve picks the nearest available unit to the pickup point and
// reserves it. Ties resolve to the lowest unit id so the choice never
// depends on map iteration order. If a reservation is lost to a concurrent
// booking the next-nearest candidate is tried; the race never surfaces.
func (m *Matcher) FindAndReserve(pickup models.Coord, bookingID string) (Assignment, error) {
	cands := m.Units.ListAvailable()
	if len(cands) == 0 {
		return Assignment{}, ErrNoUnitsAvailable
	}

	type scored struct {
		u    models.Unit
		dist float64
	}
	scoredList := make([]scored, 0, len(cands))
	for _, u := range cands {
		scoredList = append(scoredList, scored{u, geo.DistanceKm(pickup, u.Pos)})
	}
	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].dist != scoredList[j].dist {
			return scoredList[i].dist < scoredList[j].dist
		}
		return scoredList[i].u.ID < scoredList[j].u.ID
	})

	for _, c := range scoredList {
		u, err := m.Units.Reserve(c.u.ID, bookingID)
		if err != nil {
			if errors.Is(err, registry.ErrAlreadyReserved) || errors.Is(err, registry.ErrUnknownUnit) {
				observability.ReservationRaces.Inc()
				m.Logger.Debug("reservation lost, trying next candidate",
					"unit_id", c.u.ID, "booking_id", bookingID, "error", err)
				continue
			}
			return Assignment{}, fmt.Errorf("reserve %s: %w", c.u.ID, err)
		}
		return Assignment{
			Unit:       u,
			DistanceKm: c.dist,
			ETAMinutes: geo.ETAMinutes(c.dist, m.AvgSpeedKmh),
		}, nil
	}
	return Assignment{}, ErrNoUnitsAvailable
}
