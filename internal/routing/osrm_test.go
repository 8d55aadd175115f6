package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/emergency-dispatch/internal/models"
)

func TestOSRMRouteConversion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"Ok","routes":[{"duration":372,"distance":4100}]}`))
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL)
	r, err := c.Route(context.Background(), models.Coord{Lat: 13, Lng: 77.6}, models.Coord{Lat: 13.05, Lng: 77.6})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if r.DistanceKm != 4.1 {
		t.Fatalf("expected 4.1 km, got %f", r.DistanceKm)
	}
	if r.ETAMinutes != 6 { // 372s rounds to 6 min
		t.Fatalf("expected 6 min, got %d", r.ETAMinutes)
	}
}

func TestOSRMNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	c := NewOSRMClient(srv.URL)
	if _, err := c.Route(context.Background(), models.Coord{}, models.Coord{}); err == nil {
		t.Fatal("expected error for NoRoute response")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)
	a := models.Coord{Lat: 1, Lng: 2}
	b := models.Coord{Lat: 3, Lng: 4}
	cache.Set(a, b, Route{DistanceKm: 5, ETAMinutes: 7})

	if r, ok := cache.Get(a, b); !ok || r.ETAMinutes != 7 {
		t.Fatalf("expected cached route, got ok=%v r=%+v", ok, r)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := cache.Get(a, b); ok {
		t.Fatal("expected cache entry to expire")
	}
}
