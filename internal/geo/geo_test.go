package geo

import (
	"math"
	"testing"
)

func TestDistanceMilesZero(t *testing.T) {
	d := DistanceMiles(34.05, -118.25, 34.05, -118.25)
	if d != 0 {
		t.Errorf("DistanceMiles same point = %v; want 0", d)
	}
}

func TestDistanceMilesKnown(t *testing.T) {
	// LA to SF, roughly 347 statute miles as the crow flies.
	d := DistanceMiles(34.0522, -118.2437, 37.7749, -122.4194)
	if math.Abs(d-347) > 10 {
		t.Errorf("DistanceMiles LA->SF = %v; want ~347", d)
	}
}

func TestGridKeyStable(t *testing.T) {
	k1 := GridKey(34.0519, -118.2499, 0.01)
	k2 := GridKey(34.0511, -118.2491, 0.01)
	if k1 != k2 {
		t.Errorf("GridKey(%v) != GridKey(%v); both points share a cell", k1, k2)
	}
}

func TestGridKeyDifferentCells(t *testing.T) {
	k1 := GridKey(34.05, -118.25, 0.01)
	k2 := GridKey(34.06, -118.25, 0.01)
	if k1 == k2 {
		t.Errorf("GridKey collided across cells: %v", k1)
	}
}

func TestBoundingBoxDegreesZeroRadius(t *testing.T) {
	dLat, dLon := BoundingBoxDegrees(34.05, 0)
	if dLat != 0 || dLon != 0 {
		t.Errorf("BoundingBoxDegrees(_, 0) = (%v, %v); want (0, 0)", dLat, dLon)
	}
}
