package search

import "math"

const EarthRadiusKm = 6371.0

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceKm is the great-circle distance between two points given in degrees,
// using the spherical law of cosines on a sphere of radius EarthRadiusKm.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1, p2 := toRad(lat1), toRad(lat2)
	dl := toRad(lon2 - lon1)
	c := math.Cos(p1)*math.Cos(p2)*math.Cos(dl) + math.Sin(p1)*math.Sin(p2)
	// rounding can push identical points just past 1
	c = math.Max(-1, math.Min(1, c))
	return EarthRadiusKm * math.Acos(c)
}

// Within reports whether the point lies strictly inside radiusKm of the centre.
func Within(centerLat, centerLon, lat, lon, radiusKm float64) bool {
	return DistanceKm(centerLat, centerLon, lat, lon) < radiusKm
}
