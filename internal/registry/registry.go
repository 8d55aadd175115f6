package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/example/emergency-dispatch/internal/models"
)

// Mirror receives best-effort copies of unit state changes, e.g. for a
// Redis GEO index consumed by dashboards. Implementations must not block.
type Mirror interface {
	Upsert(u models.Unit)
}

// Registry is the single source of truth for unit status and position.
// The map lock only guards map shape; all unit mutation happens under the
// unit's own lock so dispatch throughput is independent of fleet size.
type Registry struct {
	mu     sync.RWMutex
	units  map[string]*entry
	mirror Mirror
	logger *slog.Logger
}

type entry struct {
	mu sync.Mutex
	u  models.Unit
}

type Option func(*Registry)

func WithMirror(m Mirror) Option {
	return func(r *Registry) { r.mirror = m }
}

func New(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{units: make(map[string]*entry), logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds a unit to the fleet, or refreshes its descriptive fields
// if it is already known. New units start Available.
func (r *Registry) Register(u models.Unit) models.Unit {
	r.mu.Lock()
	e, ok := r.units[u.ID]
	if !ok {
		e = &entry{}
		r.units[u.ID] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !ok {
		u.Status = models.UnitAvailable
		u.BookingID = ""
		u.Updated = time.Now()
		e.u = u
	} else {
		e.u.VehicleNumber = u.VehicleNumber
		e.u.CrewName = u.CrewName
		e.u.CrewPhone = u.CrewPhone
		e.u.Updated = time.Now()
	}
	r.mirrorUnit(e.u)
	return e.u
}

func (r *Registry) Get(unitID string) (models.Unit, error) {
	e, ok := r.lookup(unitID)
	if !ok {
		return models.Unit{}, fmt.Errorf("%w: %s", ErrUnknownUnit, unitID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.u, nil
}

// ListAvailable snapshots every Available unit, sorted by id so callers
// iterate in a stable order.
func (r *Registry) ListAvailable() []models.Unit {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.units))
	for _, e := range r.units {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]models.Unit, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.u.Status == models.UnitAvailable {
			out = append(out, e.u)
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reserve atomically transitions a unit from Available to Reserved and
// stamps the booking. The check and the set are one critical section; a
// concurrent caller that lost the race gets ErrAlreadyReserved.
func (r *Registry) Reserve(unitID, bookingID string) (models.Unit, error) {
	e, ok := r.lookup(unitID)
	if !ok {
		return models.Unit{}, fmt.Errorf("%w: %s", ErrUnknownUnit, unitID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.u.Status != models.UnitAvailable {
		return models.Unit{}, fmt.Errorf("%w: %s held by booking %s", ErrAlreadyReserved, unitID, e.u.BookingID)
	}
	e.u.Status = models.UnitReserved
	e.u.BookingID = bookingID
	e.u.Updated = time.Now()
	r.mirrorUnit(e.u)
	return e.u, nil
}

// MarkBusy transitions a Reserved unit to Busy once its crew confirms
// pickup acknowledgment. The booking must still hold the unit.
func (r *Registry) MarkBusy(unitID, bookingID string) error {
	e, ok := r.lookup(unitID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, unitID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.u.Status != models.UnitReserved || e.u.BookingID != bookingID {
		return fmt.Errorf("%w: %s not reserved by booking %s", ErrAlreadyReserved, unitID, bookingID)
	}
	e.u.Status = models.UnitBusy
	e.u.Updated = time.Now()
	r.mirrorUnit(e.u)
	return nil
}

// Release returns a unit to Available and clears its booking. Idempotent:
// releasing an Available unit is a no-op.
func (r *Registry) Release(unitID string) {
	e, ok := r.lookup(unitID)
	if !ok {
		r.logger.Warn("release for unknown unit", "unit_id", unitID)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.u.Status == models.UnitAvailable {
		return
	}
	e.u.Status = models.UnitAvailable
	e.u.BookingID = ""
	e.u.Updated = time.Now()
	r.mirrorUnit(e.u)
}

// UpdatePosition overwrites the unit's last-known position. Unknown units
// are logged and ignored; a bad reporter must not fail the feed.
func (r *Registry) UpdatePosition(unitID string, pos models.Coord) {
	e, ok := r.lookup(unitID)
	if !ok {
		r.logger.Warn("position update for unknown unit", "unit_id", unitID)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.u.Pos = pos
	e.u.Updated = time.Now()
	r.mirrorUnit(e.u)
}

func (r *Registry) lookup(unitID string) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.units[unitID]
	r.mu.RUnlock()
	return e, ok
}

func (r *Registry) mirrorUnit(u models.Unit) {
	if r.mirror != nil {
		r.mirror.Upsert(u)
	}
}
