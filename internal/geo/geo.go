// Package geo holds the pure coordinate math the spatial index and
// matcher build on: great-circle distance and grid-cell keys.
// No side effects, no shared state — the same shape as the teacher's
// small single-purpose helpers in logistic_service.go.
package geo

import (
	"fmt"
	"math"
)

// earthRadiusMiles is the haversine formula's R, per spec.md §4.1.
const earthRadiusMiles = 3958.8

// DistanceMiles computes the great-circle distance between two
// lat/lon points using the haversine formula.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	a := sinDLat*sinDLat + math.Cos(rad(lat1))*math.Cos(rad(lat2))*sinDLon*sinDLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMiles * c
}

// CellCoords floors lat/lon onto a g-degree grid, per spec.md §4.1.
func CellCoords(lat, lon, g float64) (cellLat, cellLon float64) {
	return math.Floor(lat/g) * g, math.Floor(lon/g) * g
}

// GridKey renders the canonical cell identifier for (lat, lon) at
// grid size g, as a "lat,lon" string with 6 decimal places so it's
// stable regardless of floating-point noise in the inputs.
func GridKey(lat, lon, g float64) string {
	cellLat, cellLon := CellCoords(lat, lon, g)
	return fmt.Sprintf("%.6f,%.6f", cellLat, cellLon)
}

// BoundingBoxDegrees converts a radius in miles, centered at lat, into
// a latitude/longitude degree half-span, per spec.md §4.4's formula.
// Longitude degrees shrink toward the poles by cos(lat); a lat of ±90
// would divide by zero, so it's clamped away from the pole.
func BoundingBoxDegrees(lat, radiusMiles float64) (dLat, dLon float64) {
	dLat = radiusMiles / 69.0

	clampedLat := lat
	if clampedLat > 89.9 {
		clampedLat = 89.9
	}
	if clampedLat < -89.9 {
		clampedLat = -89.9
	}
	cos := math.Cos(clampedLat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLon = radiusMiles / (69.0 * cos)
	return dLat, dLon
}
