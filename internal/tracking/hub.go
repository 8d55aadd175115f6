package tracking

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/emergency-dispatch/internal/models"
)

// subscriber is one connected client watching a booking.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(snap models.TrackingSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(snap)
}

// Hub fans tracking snapshots out to WebSocket subscribers keyed by
// booking id. Dead connections are dropped on write failure.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{}), logger: logger}
}

// Subscribe registers a connection for a booking and returns an
// unsubscribe func the caller runs when the connection closes.
func (h *Hub) Subscribe(bookingID string, conn *websocket.Conn) func() {
	sub := &subscriber{conn: conn}
	h.mu.Lock()
	set, ok := h.subs[bookingID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[bookingID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	return func() { h.drop(bookingID, sub) }
}

func (h *Hub) Publish(bookingID string, snap models.TrackingSnapshot) {
	h.mu.RLock()
	set := h.subs[bookingID]
	subs := make([]*subscriber, 0, len(set))
	for s := range set {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if err := s.send(snap); err != nil {
			h.logger.Warn("ws send failed, dropping subscriber", "booking_id", bookingID, "error", err)
			h.drop(bookingID, s)
			_ = s.conn.Close()
		}
	}
}

func (h *Hub) drop(bookingID string, sub *subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[bookingID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, bookingID)
		}
	}
	h.mu.Unlock()
}
