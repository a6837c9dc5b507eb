package main

import (
	"errors"
	"testing"
	"time"

	"github.com/planbiir/trackconv/internal/track"
)

func TestParseThresholds(t *testing.T) {
	got, err := parseThresholds(" 5, 10,,20 ")
	if err != nil {
		t.Fatalf("parseThresholds failed: %v", err)
	}
	if len(got) != 3 || got[0] != 5 || got[2] != 20 {
		t.Errorf("unexpected thresholds %v", got)
	}

	for _, bad := range []string{"0", "-5", "ten"} {
		if _, err := parseThresholds(bad); !errors.Is(err, track.ErrInvalidParameter) {
			t.Errorf("%q: expected ErrInvalidParameter, got %v", bad, err)
		}
	}
}

func TestAnalyzeGaps(t *testing.T) {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	pts := []track.Point{
		{Lat: 46.0, Lon: 7.0, Time: base},
		{Lat: 46.001, Lon: 7.0, Time: base.Add(30 * time.Second)},
		{Lat: 46.002, Lon: 7.0, Time: base.Add(10 * time.Minute)},
		{Lat: 46.003, Lon: 7.0},
		{Lat: 46.004, Lon: 7.0, Time: base.Add(20 * time.Minute)},
	}

	gaps := analyzeGaps(pts, 2*time.Minute)
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	if gaps[0].duration != 9*time.Minute+30*time.Second {
		t.Errorf("unexpected gap duration %v", gaps[0].duration)
	}
	if gaps[0].meters < 100 || gaps[0].meters > 120 {
		t.Errorf("expected ~111 m gap distance, got %.1f", gaps[0].meters)
	}
}
