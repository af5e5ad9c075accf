package geo

import (
	"math"
	"testing"
)

func TestDistance_IdenticalCoordinatesIsZero(t *testing.T) {
	if d := Distance(35.6895, 139.6917, 35.6895, 139.6917); d != 0 {
		t.Fatalf("expected exactly 0 for identical coordinates, got %v", d)
	}
}

func TestDistance_KnownPairs(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{"paris-london", 48.8566, 2.3522, 51.5074, -0.1278, 343.5, 2.0},
		{"tokyo-osaka", 35.6895, 139.6917, 34.6937, 135.5023, 396.0, 5.0},
		{"one degree latitude", 0, 0, 1, 0, 111.19, 0.5},
	}
	for _, tc := range cases {
		got := Distance(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
		if math.Abs(got-tc.wantKm) > tc.tolKm {
			t.Errorf("%s: Distance = %.2f km; want %.2f ± %.1f", tc.name, got, tc.wantKm, tc.tolKm)
		}
	}
}

func TestDistance_Symmetry(t *testing.T) {
	a := Distance(10.5, -74.2, -33.9, 151.2)
	b := Distance(-33.9, 151.2, 10.5, -74.2)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", a, b)
	}
}

func TestDistance_AntipodalIsFiniteHalfCircumference(t *testing.T) {
	got := Distance(0, 0, 0, 180)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("antipodal distance not finite: %v", got)
	}
	want := math.Pi * EarthRadiusKm
	if math.Abs(got-want) > 1.0 {
		t.Fatalf("antipodal distance = %.2f; want ~%.2f", got, want)
	}
}
