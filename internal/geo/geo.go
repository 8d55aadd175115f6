package geo

import (
	"math"

	"github.com/example/emergency-dispatch/internal/models"
)

const earthRadiusKm = 6371.0

// DefaultSpeedKmh is the assumed average unit speed when no routed
// estimate is available.
const DefaultSpeedKmh = 50.0

// DistanceKm returns the great-circle distance between two points in km.
func DistanceKm(a, b models.Coord) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// ETAMinutes converts a straight-line distance into a rounded minute
// estimate at the given average speed. Never negative.
func ETAMinutes(distanceKm, avgSpeedKmh float64) int {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = DefaultSpeedKmh
	}
	if distanceKm <= 0 {
		return 0
	}
	return int(math.Round(distanceKm / avgSpeedKmh * 60))
}
