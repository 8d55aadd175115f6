package matcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/registry"
)

type fakeUnits struct {
	units    []models.Unit
	failOnce map[string]bool // unit ids whose first Reserve loses the race
	reserved []string
}

func (f *fakeUnits) ListAvailable() []models.Unit { return f.units }

func (f *fakeUnits) Reserve(unitID, bookingID string) (models.Unit, error) {
	if f.failOnce[unitID] {
		delete(f.failOnce, unitID)
		return models.Unit{}, fmt.Errorf("%w: %s", registry.ErrAlreadyReserved, unitID)
	}
	f.reserved = append(f.reserved, unitID)
	for _, u := range f.units {
		if u.ID == unitID {
			u.Status = models.UnitReserved
			u.BookingID = bookingID
			return u, nil
		}
	}
	return models.Unit{}, registry.ErrUnknownUnit
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPicksNearestUnit(t *testing.T) {
	pickup := models.Coord{Lat: 0, Lng: 0}
	// roughly 12.3, 4.1 and 50.0 km north of the pickup
	f := &fakeUnits{units: []models.Unit{
		{ID: "far", Pos: models.Coord{Lat: 12.3 / 111.19, Lng: 0}},
		{ID: "near", Pos: models.Coord{Lat: 4.1 / 111.19, Lng: 0}},
		{ID: "farthest", Pos: models.Coord{Lat: 50.0 / 111.19, Lng: 0}},
	}}
	m := New(f, 50, testLogger())

	a, err := m.FindAndReserve(pickup, "b1")
	if err != nil {
		t.Fatalf("match failed: %v", err)
	}
	if a.Unit.ID != "near" {
		t.Fatalf("expected nearest unit, got %s", a.Unit.ID)
	}
}

func TestTieBreakLowestID(t *testing.T) {
	pickup := models.Coord{Lat: 0, Lng: 0}
	same := models.Coord{Lat: 0.01, Lng: 0.01}
	f := &fakeUnits{units: []models.Unit{
		{ID: "unit-9", Pos: same},
		{ID: "unit-2", Pos: same},
		{ID: "unit-5", Pos: same},
	}}
	m := New(f, 50, testLogger())

	for i := 0; i < 10; i++ {
		f.reserved = nil
		f.units[0].Status = models.UnitAvailable
		a, err := m.FindAndReserve(pickup, "b1")
		if err != nil {
			t.Fatalf("match failed: %v", err)
		}
		if a.Unit.ID != "unit-2" {
			t.Fatalf("tie-break not deterministic, got %s on attempt %d", a.Unit.ID, i)
		}
	}
}

func TestRetriesNextCandidateOnRace(t *testing.T) {
	pickup := models.Coord{Lat: 0, Lng: 0}
	f := &fakeUnits{
		units: []models.Unit{
			{ID: "u1", Pos: models.Coord{Lat: 0.01, Lng: 0}},
			{ID: "u2", Pos: models.Coord{Lat: 0.02, Lng: 0}},
		},
		failOnce: map[string]bool{"u1": true},
	}
	m := New(f, 50, testLogger())

	a, err := m.FindAndReserve(pickup, "b1")
	if err != nil {
		t.Fatalf("expected fallback to succeed: %v", err)
	}
	if a.Unit.ID != "u2" {
		t.Fatalf("expected next-nearest u2, got %s", a.Unit.ID)
	}
}

func TestNoUnitsAvailable(t *testing.T) {
	m := New(&fakeUnits{}, 50, testLogger())
	if _, err := m.FindAndReserve(models.Coord{}, "b1"); !errors.Is(err, ErrNoUnitsAvailable) {
		t.Fatalf("expected ErrNoUnitsAvailable, got %v", err)
	}
}

func TestAllCandidatesExhausted(t *testing.T) {
	f := &fakeUnits{
		units: []models.Unit{
			{ID: "u1", Pos: models.Coord{Lat: 0.01, Lng: 0}},
			{ID: "u2", Pos: models.Coord{Lat: 0.02, Lng: 0}},
		},
		failOnce: map[string]bool{"u1": true, "u2": true},
	}
	m := New(f, 50, testLogger())
	if _, err := m.FindAndReserve(models.Coord{}, "b1"); !errors.Is(err, ErrNoUnitsAvailable) {
		t.Fatalf("expected ErrNoUnitsAvailable after exhaustion, got %v", err)
	}
}
