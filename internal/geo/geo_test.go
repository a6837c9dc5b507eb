package geo

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	// 0.1 degree of latitude is ~11.1 km
	dist := Haversine(46.0, 7.0, 46.1, 7.0)
	if math.Abs(dist-11119.5) > 5 {
		t.Errorf("Haversine distance incorrect: got %.1fm, expected ~11119m", dist)
	}

	if Haversine(46.0, 7.0, 46.0, 7.0) != 0 {
		t.Errorf("distance between identical points should be 0")
	}
}

func TestHaversineDiagonal(t *testing.T) {
	distance := Haversine(46.0, 7.0, 46.001, 7.001)

	// Should be approximately 136 meters
	if distance < 126 || distance > 146 {
		t.Errorf("Expected distance ~136m, got %.0fm", distance)
	}
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"north", 0, 0, 1, 0, 0},
		{"east", 0, 0, 0, 1, math.Pi / 2},
		{"south", 1, 0, 0, 0, math.Pi},
		{"west", 0, 1, 0, 0, -math.Pi / 2},
	}

	for _, tt := range tests {
		got := Bearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("%s: expected bearing %.1f, got %.6f", tt.name, tt.want, got)
		}
	}
}

func TestDistanceToChordPerpendicular(t *testing.T) {
	// Chord along the equator, point ~111m north of its middle.
	d := DistanceToChord(0.001, 0.005, 0, 0, 0, 0.01)
	if math.Abs(d-111.19) > 0.5 {
		t.Errorf("expected ~111.2m, got %.3fm", d)
	}
}

func TestDistanceToChordClampsToEndpoints(t *testing.T) {
	// Point beyond B on the chord's great circle.
	beyond := DistanceToChord(0, 0.02, 0, 0, 0, 0.01)
	want := Haversine(0, 0.01, 0, 0.02)
	if math.Abs(beyond-want) > 0.01 {
		t.Errorf("expected distance to B %.3f, got %.3f", want, beyond)
	}

	// Point behind A.
	behind := DistanceToChord(0, -0.01, 0, 0, 0, 0.01)
	want = Haversine(0, 0, 0, -0.01)
	if math.Abs(behind-want) > 0.01 {
		t.Errorf("expected distance to A %.3f, got %.3f", want, behind)
	}
}

func TestDistanceToChordDegenerate(t *testing.T) {
	d := DistanceToChord(46.001, 7.0, 46.0, 7.0, 46.0, 7.0)
	want := Haversine(46.0, 7.0, 46.001, 7.0)
	if d != want {
		t.Errorf("degenerate chord: expected %.3f, got %.3f", want, d)
	}
}
