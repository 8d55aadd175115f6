package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/emergency-dispatch/internal/booking"
	"github.com/example/emergency-dispatch/internal/identity"
	"github.com/example/emergency-dispatch/internal/matcher"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/registry"
	"github.com/example/emergency-dispatch/internal/service"
	"github.com/example/emergency-dispatch/internal/tracking"
)

// Server is the thin HTTP/WS framing over the dispatch facade. All domain
// decisions live below it; this layer decodes, authenticates and maps
// typed errors to status codes.
type Server struct {
	svc      *service.Dispatch
	identity identity.Identity // optional; nil disables bearer auth
	hub      *tracking.Hub
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(svc *service.Dispatch, id identity.Identity, hub *tracking.Hub, logger *slog.Logger) *Server {
	s := &Server{svc: svc, identity: id, hub: hub, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	// pre-auth challenge delivery; registered before the authenticated
	// subrouter so it wins the /api/v1 prefix match
	s.mux.HandleFunc("/api/v1/challenges", s.handleSendChallenge).Methods("POST")

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/bookings", s.handleCreateBooking).Methods("POST")
	api.HandleFunc("/bookings/{id}", s.handleGetBooking).Methods("GET")
	api.HandleFunc("/bookings/{id}/dispatch", s.handleDispatch).Methods("POST")
	api.HandleFunc("/bookings/{id}/enroute", s.handleEnRoute).Methods("POST")
	api.HandleFunc("/bookings/{id}/complete", s.handleComplete).Methods("POST")
	api.HandleFunc("/bookings/{id}/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/bookings/{id}/tracking", s.handleTracking).Methods("GET")

	s.mux.HandleFunc("/internal/units", s.handleRegisterUnit).Methods("POST")
	s.mux.HandleFunc("/internal/units/{id}/location", s.handleUnitLocation).Methods("POST")

	s.mux.HandleFunc("/ws/bookings/{id}", s.handleTrackingWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type createBookingRequest struct {
	Emergency models.EmergencyType `json:"emergency_type"`
	Pickup    models.Coord         `json:"pickup"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.svc.CreateBooking(requesterFromContext(r.Context()), req.Emergency, req.Pickup)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.GetBooking(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if uid := requesterFromContext(r.Context()); uid != "" && b.RequesterID != uid {
		writeJSONError(w, http.StatusForbidden, "not your booking")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	s.transition(w, s.svc.DispatchBooking, mux.Vars(r)["id"])
}

func (s *Server) handleEnRoute(w http.ResponseWriter, r *http.Request) {
	s.transition(w, s.svc.MarkEnRoute, mux.Vars(r)["id"])
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.transition(w, s.svc.CompleteBooking, mux.Vars(r)["id"])
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.transition(w, s.svc.CancelBooking, mux.Vars(r)["id"])
}

func (s *Server) transition(w http.ResponseWriter, op func(string) (models.Booking, error), id string) {
	b, err := op(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleTracking(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.svc.GetTrackingSnapshot(mux.Vars(r)["id"])
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSendChallenge(w http.ResponseWriter, r *http.Request) {
	if s.identity == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "identity provider not configured")
		return
	}
	var req struct {
		Contact string `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Contact == "" {
		writeJSONError(w, http.StatusBadRequest, "contact required")
		return
	}
	challengeID, err := s.identity.SendChallenge(r.Context(), req.Contact)
	if err != nil {
		s.logger.Error("challenge delivery failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "challenge delivery failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"challenge_id": challengeID})
}

func (s *Server) handleRegisterUnit(w http.ResponseWriter, r *http.Request) {
	var u models.Unit
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if u.ID == "" {
		writeJSONError(w, http.StatusBadRequest, "unit id required")
		return
	}
	writeJSON(w, http.StatusCreated, s.svc.RegisterUnit(u))
}

func (s *Server) handleUnitLocation(w http.ResponseWriter, r *http.Request) {
	var pos models.Coord
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.svc.ReportUnitPosition(mux.Vars(r)["id"], pos)
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

// handleTrackingWS streams tracking snapshots for one booking. The read
// loop exists only to notice the peer going away.
func (s *Server) handleTrackingWS(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]
	if _, err := s.svc.GetBooking(bookingID); err != nil {
		s.writeError(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "booking_id", bookingID, "error", err)
		return
	}
	unsubscribe := s.hub.Subscribe(bookingID, conn)
	go func() {
		defer unsubscribe()
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrInvalidToken):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, booking.ErrUnknownBooking), errors.Is(err, registry.ErrUnknownUnit):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, matcher.ErrNoUnitsAvailable):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
