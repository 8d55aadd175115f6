package geo

import (
	"math"
	"testing"

	"github.com/example/emergency-dispatch/internal/models"
)

func TestDistanceZeroAtIdentity(t *testing.T) {
	pts := []models.Coord{{}, {Lat: 13.0, Lng: 77.6}, {Lat: -33.86, Lng: 151.2}}
	for _, p := range pts {
		if d := DistanceKm(p, p); d != 0 {
			t.Fatalf("expected 0 for %v, got %f", p, d)
		}
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := models.Coord{Lat: 13.0, Lng: 77.6}
	b := models.Coord{Lat: 13.5, Lng: 78.0}
	if DistanceKm(a, b) != DistanceKm(b, a) {
		t.Fatalf("distance not symmetric: %f vs %f", DistanceKm(a, b), DistanceKm(b, a))
	}
}

func TestDistanceKnownPair(t *testing.T) {
	// one degree of latitude is ~111.2 km
	a := models.Coord{Lat: 0, Lng: 0}
	b := models.Coord{Lat: 1, Lng: 0}
	d := DistanceKm(a, b)
	if math.Abs(d-111.19) > 0.5 {
		t.Fatalf("expected ~111.19 km, got %f", d)
	}
}

func TestETAMinutes(t *testing.T) {
	if eta := ETAMinutes(0, 50); eta != 0 {
		t.Fatalf("zero distance should yield zero ETA, got %d", eta)
	}
	if eta := ETAMinutes(-3, 50); eta != 0 {
		t.Fatalf("negative distance should yield zero ETA, got %d", eta)
	}
	// 25 km at 50 km/h is 30 minutes
	if eta := ETAMinutes(25, 50); eta != 30 {
		t.Fatalf("expected 30, got %d", eta)
	}
	// invalid speed falls back to the default
	if eta := ETAMinutes(25, 0); eta != 30 {
		t.Fatalf("expected default-speed fallback of 30, got %d", eta)
	}
	// rounding, not truncation: 4.1 km at 50 km/h = 4.92 min
	if eta := ETAMinutes(4.1, 50); eta != 5 {
		t.Fatalf("expected 5, got %d", eta)
	}
}
