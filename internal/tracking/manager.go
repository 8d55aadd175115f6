package tracking

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/observability"
	"github.com/example/emergency-dispatch/internal/routing"
)

// Manager owns one Session per active booking and routes unit position
// reports to them. It never takes booking-state locks, so a slow dispatch
// decision cannot stall the location feed.
type Manager struct {
	provider routing.Provider
	refresh  time.Duration
	speedKmh float64
	hub      *Hub
	logger   *slog.Logger

	mu        sync.RWMutex
	byBooking map[string]*Session
	byUnit    map[string]string
}

func NewManager(provider routing.Provider, refresh time.Duration, speedKmh float64, hub *Hub, logger *slog.Logger) *Manager {
	return &Manager{
		provider:  provider,
		refresh:   refresh,
		speedKmh:  speedKmh,
		hub:       hub,
		logger:    logger,
		byBooking: make(map[string]*Session),
		byUnit:    make(map[string]string),
	}
}

// Start opens a session for an assigned booking. Starting twice for the
// same booking replaces the previous session.
func (m *Manager) Start(b models.Booking) {
	s := newSession(b, m.provider, m.refresh, m.speedKmh, m.logger)
	m.mu.Lock()
	if old, ok := m.byBooking[b.ID]; ok {
		old.stop()
	} else {
		observability.ActiveSessions.Inc()
	}
	m.byBooking[b.ID] = s
	m.byUnit[b.UnitID] = b.ID
	m.mu.Unlock()
	m.logger.Info("tracking session started", "booking_id", b.ID, "unit_id", b.UnitID)
}

// Stop discards the session for a booking. Subsequent reports for its
// unit are treated as stale.
func (m *Manager) Stop(bookingID string) {
	m.mu.Lock()
	s, ok := m.byBooking[bookingID]
	if ok {
		s.stop()
		delete(m.byBooking, bookingID)
		delete(m.byUnit, s.unitID)
		observability.ActiveSessions.Dec()
	}
	m.mu.Unlock()
	if ok {
		m.logger.Info("tracking session stopped", "booking_id", bookingID)
	}
}

// Ingest folds a position report into the session tracking the unit, if
// any, and fans the snapshot out to subscribers.
func (m *Manager) Ingest(unitID string, pos models.Coord) (models.TrackingSnapshot, error) {
	m.mu.RLock()
	bookingID, ok := m.byUnit[unitID]
	var s *Session
	if ok {
		s = m.byBooking[bookingID]
	}
	m.mu.RUnlock()
	if s == nil {
		observability.StaleUpdates.Inc()
		return models.TrackingSnapshot{}, fmt.Errorf("%w: unit %s", ErrStaleSession, unitID)
	}

	snap, err := s.Ingest(pos)
	if err != nil {
		observability.StaleUpdates.Inc()
		return models.TrackingSnapshot{}, err
	}
	if m.hub != nil {
		m.hub.Publish(bookingID, snap)
	}
	return snap, nil
}

// Latest returns the newest snapshot for a booking, or false if the
// session is gone or has seen no update yet.
func (m *Manager) Latest(bookingID string) (models.TrackingSnapshot, bool) {
	m.mu.RLock()
	s := m.byBooking[bookingID]
	m.mu.RUnlock()
	if s == nil {
		return models.TrackingSnapshot{}, false
	}
	return s.Latest()
}
