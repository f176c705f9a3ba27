package geo

import (
	"math"
	"testing"
)

func TestDistanceMetersZero(t *testing.T) {
	if d := DistanceMeters(41.0082, 28.9784, 41.0082, 28.9784); d != 0 {
		t.Fatalf("distance to self should be 0, got %g", d)
	}
}

func TestDistanceMetersKnownPairs(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64 // meters
		tol                    float64
	}{
		// One degree of latitude is ~111.2 km on the sphere.
		{"one degree latitude", 0, 0, 1, 0, 111195, 100},
		// Istanbul (Sultanahmet) to Ankara (Kızılay), ~351 km.
		{"istanbul ankara", 41.0082, 28.9784, 39.9208, 32.8541, 351000, 5000},
		// Two corners of a campus block, ~130 m.
		{"campus block", 41.10550, 29.02520, 41.10660, 29.02580, 130, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DistanceMeters(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			if math.Abs(got-tc.want) > tc.tol {
				t.Fatalf("expected ~%gm (±%g), got %gm", tc.want, tc.tol, got)
			}
		})
	}
}

func TestDistanceMetersSymmetric(t *testing.T) {
	a := DistanceMeters(41.0, 29.0, 39.9, 32.8)
	b := DistanceMeters(39.9, 32.8, 41.0, 29.0)
	if math.Abs(a-b) > 1e-6 {
		t.Fatalf("distance not symmetric: %g vs %g", a, b)
	}
}

func TestWithinFence(t *testing.T) {
	teacher := Coord{Lat: 41.10550, Lon: 29.02520}
	near := Coord{Lat: 41.10560, Lon: 29.02525} // ~12 m away
	far := Coord{Lat: 41.11550, Lon: 29.03520}  // ~1.4 km away

	if !WithinFence(teacher, near, 150) {
		t.Fatal("student in the classroom should pass a 150m fence")
	}
	if WithinFence(teacher, far, 150) {
		t.Fatal("student a kilometer away should fail a 150m fence")
	}
	// A non-positive radius disables the fence.
	if !WithinFence(teacher, far, 0) {
		t.Fatal("zero radius should disable the fence")
	}
}
