package storage

import (
	"sync"

	"github.com/example/emergency-dispatch/internal/models"
)

// BookingStore journals booking rows. The in-memory arena inside the state
// machine stays authoritative; a store is a write-through record so
// bookings survive a restart and can be inspected out of process.
type BookingStore interface {
	SaveBooking(b *models.Booking) error
	UpdateBooking(b *models.Booking) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[string]models.Booking)}
}

func (m *MemoryStore) SaveBooking(b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) UpdateBooking(b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) Get(id string) (models.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	return b, ok
}
