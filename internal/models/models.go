package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EmergencyType categorizes why transport was requested.
type EmergencyType string

const (
	EmergencyCardiac   EmergencyType = "cardiac"
	EmergencyStroke    EmergencyType = "stroke"
	EmergencyAccident  EmergencyType = "accident"
	EmergencyBreathing EmergencyType = "breathing"
	EmergencyOther     EmergencyType = "other"
)

func (e EmergencyType) Valid() bool {
	switch e {
	case EmergencyCardiac, EmergencyStroke, EmergencyAccident, EmergencyBreathing, EmergencyOther:
		return true
	}
	return false
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAssigned  BookingStatus = "assigned"
	BookingEnRoute   BookingStatus = "en_route"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type Booking struct {
	ID          string        `json:"id"`
	RequesterID string        `json:"requester_id"`
	Emergency   EmergencyType `json:"emergency_type"`
	Pickup      Coord         `json:"pickup"`
	Status      BookingStatus `json:"status"`
	UnitID      string        `json:"unit_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	AssignedAt  time.Time     `json:"assigned_at,omitzero"`
	CompletedAt time.Time     `json:"completed_at,omitzero"`
}

type UnitStatus string

const (
	UnitAvailable UnitStatus = "available"
	UnitReserved  UnitStatus = "reserved"
	UnitBusy      UnitStatus = "busy"
)

type Unit struct {
	ID            string     `json:"id"`
	Status        UnitStatus `json:"status"`
	Pos           Coord      `json:"pos"`
	BookingID     string     `json:"booking_id,omitempty"`
	VehicleNumber string     `json:"vehicle_number,omitempty"`
	CrewName      string     `json:"crew_name,omitempty"`
	CrewPhone     string     `json:"crew_phone,omitempty"`
	Updated       time.Time  `json:"updated"`
}

// TrackingSnapshot is the derived distance/ETA view for an active booking.
// Recomputed on every position update, never persisted.
type TrackingSnapshot struct {
	BookingID   string    `json:"booking_id"`
	UnitID      string    `json:"unit_id"`
	Pos         Coord     `json:"pos"`
	DistanceKm  float64   `json:"distance_km"`
	ETAMinutes  int       `json:"eta_minutes"`
	GeneratedAt time.Time `json:"generated_at"`
}

// PositionReport is the wire shape for unit location messages on Kafka.
type PositionReport struct {
	UnitID     string    `json:"unit_id"`
	Pos        Coord     `json:"pos"`
	ReportedAt time.Time `json:"reported_at"`
}
