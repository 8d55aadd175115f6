package booking

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/emergency-dispatch/internal/matcher"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/observability"
	"github.com/example/emergency-dispatch/internal/storage"
)

// Matcher selects and reserves a unit for a pickup point.
type Matcher interface {
	FindAndReserve(pickup models.Coord, bookingID string) (matcher.Assignment, error)
}

// UnitControl is the slice of the registry the machine uses to hand units
// back and to mark them busy.
type UnitControl interface {
	Release(unitID string)
	MarkBusy(unitID, bookingID string) error
}

// TrackingControl starts and stops per-booking tracking sessions.
type TrackingControl interface {
	Start(b models.Booking)
	Stop(bookingID string)
}

// Machine owns the lifecycle of every booking. Bookings live in an
// in-memory arena keyed by id with a lock per entry; the store is a
// write-through journal and never authoritative.
type Machine struct {
	matcher  Matcher
	units    UnitControl
	tracking TrackingControl
	store    storage.BookingStore
	logger   *slog.Logger

	mu       sync.RWMutex
	bookings map[string]*entry
}

type entry struct {
	mu sync.Mutex
	b  models.Booking
}

func NewMachine(m Matcher, units UnitControl, tracking TrackingControl, store storage.BookingStore, logger *slog.Logger) *Machine {
	return &Machine{
		matcher:  m,
		units:    units,
		tracking: tracking,
		store:    store,
		logger:   logger,
		bookings: make(map[string]*entry),
	}
}

// Create registers a new booking in Pending. No dispatch side effects.
func (m *Machine) Create(requesterID string, emergency models.EmergencyType, pickup models.Coord) (models.Booking, error) {
	if requesterID == "" {
		return models.Booking{}, fmt.Errorf("%w: missing requester", ErrInvalidRequest)
	}
	if !emergency.Valid() {
		return models.Booking{}, fmt.Errorf("%w: emergency type %q", ErrInvalidRequest, emergency)
	}
	b := models.Booking{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Emergency:   emergency,
		Pickup:      pickup,
		Status:      models.BookingPending,
		CreatedAt:   time.Now(),
	}
	m.mu.Lock()
	m.bookings[b.ID] = &entry{b: b}
	m.mu.Unlock()

	m.journal(func() error { return m.store.SaveBooking(&b) }, b.ID, "save")
	m.logger.Info("booking created", "booking_id", b.ID, "emergency_type", string(emergency))
	return b, nil
}

// Dispatch assigns the nearest available unit to a Pending booking and
// starts its tracking session. On ErrNoUnitsAvailable the booking stays
// Pending so the caller can retry later.
func (m *Machine) Dispatch(bookingID string) (models.Booking, error) {
	e, err := m.lookup(bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.b.Status != models.BookingPending {
		return models.Booking{}, transitionErr("dispatch", e.b.Status)
	}

	a, err := m.matcher.FindAndReserve(e.b.Pickup, e.b.ID)
	if err != nil {
		observability.DispatchNoUnits.Inc()
		return models.Booking{}, err
	}

	e.b.Status = models.BookingAssigned
	e.b.UnitID = a.Unit.ID
	e.b.AssignedAt = time.Now()

	m.journal(func() error { return m.store.UpdateBooking(&e.b) }, e.b.ID, "update")
	m.tracking.Start(e.b)
	observability.DispatchesTotal.Inc()
	m.logger.Info("booking dispatched",
		"booking_id", e.b.ID, "unit_id", a.Unit.ID,
		"distance_km", a.DistanceKm, "eta_minutes", a.ETAMinutes)
	return e.b, nil
}

// MarkEnRoute records the crew's pickup acknowledgment.
func (m *Machine) MarkEnRoute(bookingID string) (models.Booking, error) {
	e, err := m.lookup(bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.b.Status != models.BookingAssigned {
		return models.Booking{}, transitionErr("mark en route", e.b.Status)
	}
	if err := m.units.MarkBusy(e.b.UnitID, e.b.ID); err != nil {
		return models.Booking{}, fmt.Errorf("mark unit busy: %w", err)
	}
	e.b.Status = models.BookingEnRoute
	m.journal(func() error { return m.store.UpdateBooking(&e.b) }, e.b.ID, "update")
	m.logger.Info("booking en route", "booking_id", e.b.ID, "unit_id", e.b.UnitID)
	return e.b, nil
}

// Complete closes an Assigned or EnRoute booking, releases its unit and
// stops tracking.
func (m *Machine) Complete(bookingID string) (models.Booking, error) {
	e, err := m.lookup(bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.b.Status != models.BookingAssigned && e.b.Status != models.BookingEnRoute {
		return models.Booking{}, transitionErr("complete", e.b.Status)
	}
	e.b.Status = models.BookingCompleted
	e.b.CompletedAt = time.Now()

	m.units.Release(e.b.UnitID)
	m.tracking.Stop(e.b.ID)
	m.journal(func() error { return m.store.UpdateBooking(&e.b) }, e.b.ID, "update")
	m.logger.Info("booking completed", "booking_id", e.b.ID, "unit_id", e.b.UnitID)
	return e.b, nil
}

// Cancel aborts a Pending or Assigned booking. If a unit was reserved it
// is released before Cancel returns, so the caller can rely on it being
// Available again.
func (m *Machine) Cancel(bookingID string) (models.Booking, error) {
	e, err := m.lookup(bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.b.Status != models.BookingPending && e.b.Status != models.BookingAssigned {
		return models.Booking{}, transitionErr("cancel", e.b.Status)
	}
	if e.b.UnitID != "" {
		m.units.Release(e.b.UnitID)
		m.tracking.Stop(e.b.ID)
	}
	e.b.Status = models.BookingCancelled
	m.journal(func() error { return m.store.UpdateBooking(&e.b) }, e.b.ID, "update")
	m.logger.Info("booking cancelled", "booking_id", e.b.ID)
	return e.b, nil
}

func (m *Machine) Get(bookingID string) (models.Booking, error) {
	e, err := m.lookup(bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.b, nil
}

func (m *Machine) lookup(bookingID string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.bookings[bookingID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBooking, bookingID)
	}
	return e, nil
}

// journal writes through to the store; a failed write is logged, never
// allowed to block or roll back a transition.
func (m *Machine) journal(fn func() error, bookingID, op string) {
	if err := fn(); err != nil {
		m.logger.Error("booking journal write failed", "booking_id", bookingID, "op", op, "error", err)
	}
}

func transitionErr(op string, from models.BookingStatus) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, op, from)
}
