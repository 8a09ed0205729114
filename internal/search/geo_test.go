package search

import (
	"math"
	"testing"
)

func almost(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

// northOf returns the latitude d km due north of lat along a meridian.
func northOf(lat, d float64) float64 { return lat + d/EarthRadiusKm*180/math.Pi }

func TestDistanceKm(t *testing.T) {
	if d := DistanceKm(45.8, 15.97, 45.8, 15.97); d != 0 {
		t.Fatalf("same point distance = %v", d)
	}
	// Zagreb to Split, roughly 260 km
	if d := DistanceKm(45.815, 15.982, 43.508, 16.440); !almost(d, 259.0, 3) {
		t.Fatalf("zagreb-split = %v", d)
	}
	if d := DistanceKm(0, 0, 0, 180); !almost(d, math.Pi*EarthRadiusKm, 1e-6) {
		t.Fatalf("antipodal = %v", d)
	}
	if d := DistanceKm(10, 20, northOf(10, 5), 20); !almost(d, 5, 1e-6) {
		t.Fatalf("5 km north = %v", d)
	}
}

func TestWithinRadiusBoundary(t *testing.T) {
	const lat, lon = 48.2082, 16.3738
	if Within(lat, lon, northOf(lat, 10.0001), lon, 10) {
		t.Fatalf("10.0001 km included by a 10 km radius")
	}
	if !Within(lat, lon, northOf(lat, 9.9999), lon, 10) {
		t.Fatalf("9.9999 km excluded by a 10 km radius")
	}
}
