package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/example/emergency-dispatch/internal/booking"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/observability"
	"github.com/example/emergency-dispatch/internal/registry"
	"github.com/example/emergency-dispatch/internal/tracking"
)

// PositionPublisher forwards position reports to the ingest pipeline.
type PositionPublisher interface {
	PublishPosition(r models.PositionReport) error
}

// Dispatch is the externally visible facade gluing the booking machine,
// unit registry and tracking manager together for the transport layer.
type Dispatch struct {
	Bookings  *booking.Machine
	Units     *registry.Registry
	Tracking  *tracking.Manager
	Publisher PositionPublisher // optional
	Logger    *slog.Logger
}

func New(bookings *booking.Machine, units *registry.Registry, trk *tracking.Manager, pub PositionPublisher, logger *slog.Logger) *Dispatch {
	return &Dispatch{Bookings: bookings, Units: units, Tracking: trk, Publisher: pub, Logger: logger}
}

func (d *Dispatch) CreateBooking(requesterID string, emergency models.EmergencyType, pickup models.Coord) (models.Booking, error) {
	return d.Bookings.Create(requesterID, emergency, pickup)
}

func (d *Dispatch) DispatchBooking(bookingID string) (models.Booking, error) {
	return d.Bookings.Dispatch(bookingID)
}

func (d *Dispatch) MarkEnRoute(bookingID string) (models.Booking, error) {
	return d.Bookings.MarkEnRoute(bookingID)
}

func (d *Dispatch) CompleteBooking(bookingID string) (models.Booking, error) {
	return d.Bookings.Complete(bookingID)
}

func (d *Dispatch) CancelBooking(bookingID string) (models.Booking, error) {
	return d.Bookings.Cancel(bookingID)
}

func (d *Dispatch) GetBooking(bookingID string) (models.Booking, error) {
	return d.Bookings.Get(bookingID)
}

// RegisterUnit adds a transport unit to the fleet.
func (d *Dispatch) RegisterUnit(u models.Unit) models.Unit {
	return d.Units.Register(u)
}

// ReportUnitPosition ingests one position report. The registry write is
// the authoritative effect; the Kafka publish and the tracking update are
// best-effort and a stale tracking session is not an error for the
// reporter.
func (d *Dispatch) ReportUnitPosition(unitID string, pos models.Coord) {
	observability.PositionUpdates.Inc()
	d.Units.UpdatePosition(unitID, pos)

	if d.Publisher != nil {
		report := models.PositionReport{UnitID: unitID, Pos: pos, ReportedAt: time.Now()}
		if err := d.Publisher.PublishPosition(report); err != nil {
			d.Logger.Warn("position publish failed", "unit_id", unitID, "error", err)
		}
	}

	if _, err := d.Tracking.Ingest(unitID, pos); err != nil {
		if errors.Is(err, tracking.ErrStaleSession) {
			d.Logger.Debug("stale position report", "unit_id", unitID)
			return
		}
		d.Logger.Warn("tracking ingest failed", "unit_id", unitID, "error", err)
	}
}

// GetTrackingSnapshot returns the latest snapshot for a booking, or false
// before the first update or after the session stopped.
func (d *Dispatch) GetTrackingSnapshot(bookingID string) (models.TrackingSnapshot, bool) {
	return d.Tracking.Latest(bookingID)
}
