package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/planbiir/trackconv/internal/format"
	"github.com/planbiir/trackconv/internal/simplify"
	"github.com/planbiir/trackconv/internal/track"
)

func main() {
	gapFlag := flag.Duration("gap", 2*time.Minute, "Report recording gaps longer than this (0 disables)")
	thresholdsFlag := flag.String("thresholds", "5,10,20,50,100", "Comma-separated simplification thresholds in meters to preview")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatalf("usage: %s [flags] <track.gpx|track.kml> [...]", os.Args[0])
	}

	thresholds, err := parseThresholds(*thresholdsFlag)
	if err != nil {
		log.Fatalf("thresholds: %v", err)
	}

	failed := false
	for i, path := range args {
		if i > 0 {
			fmt.Println()
		}
		if err := describe(path, *gapFlag, thresholds); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func describe(path string, gapThreshold time.Duration, thresholds []int) error {
	kind, err := format.KindFromPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := format.Parse(data, kind)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	fmt.Printf("%s (%s)\n", path, kind)
	if doc.Name != "" {
		fmt.Printf("  name: %s\n", doc.Name)
	}
	printDocStats(doc)

	for _, trk := range doc.Tracks {
		name := trk.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  track %q: %d segment(s)\n", name, len(trk.Segments))
		for j, seg := range trk.Segments {
			start, end := timeBounds(seg.Points)
			fmt.Printf("    segment %d: %d points, %.3f km", j+1, seg.Len(), seg.Length()/1000)
			if !start.IsZero() {
				fmt.Printf(", %s – %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
			}
			fmt.Println()

			if gapThreshold <= 0 {
				continue
			}
			for _, g := range analyzeGaps(seg.Points, gapThreshold) {
				fmt.Printf("      gap: %s – %s (duration %v, %.0f m)\n",
					g.startTime.Format(time.RFC3339), g.endTime.Format(time.RFC3339), g.duration, g.meters)
			}
		}
	}

	if len(doc.Tracks) == 0 || len(thresholds) == 0 {
		return nil
	}
	fmt.Printf("  simplification preview:\n")
	for _, d := range thresholds {
		_, stats, err := simplify.Document(doc, float64(d))
		if err != nil {
			return fmt.Errorf("simplify %dm: %w", d, err)
		}
		fmt.Printf("    %4d m: %d → %d points (%.1f%% removed)\n", d, stats.PointsIn, stats.PointsOut, stats.Percent())
	}
	return nil
}

func printDocStats(doc *track.Document) {
	s := doc.Stats()
	fmt.Printf("  tracks: %d, segments: %d, points: %d, waypoints: %d\n", s.Tracks, s.Segments, s.Points, s.Waypoints)
	fmt.Printf("  distance: %.3f km\n", s.DistanceMeters/1000)
	if s.Duration > 0 {
		fmt.Printf("  duration: %v\n", s.Duration)
	}
	fmt.Printf("  elevation known: %d/%d points\n", s.ElevationKnown, s.Points)
	if b, ok := doc.Bounds(); ok {
		lat, lon := b.Center()
		fmt.Printf("  bounds: %.5f,%.5f – %.5f,%.5f (center %.5f,%.5f)\n", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon, lat, lon)
	}
}

type gapInfo struct {
	startTime time.Time
	endTime   time.Time
	duration  time.Duration
	meters    float64
}

// analyzeGaps lists consecutive timestamped points further apart in time
// than threshold.
func analyzeGaps(points []track.Point, threshold time.Duration) []gapInfo {
	var result []gapInfo
	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]
		if !a.HasTime() || !b.HasTime() {
			continue
		}
		gap := b.Time.Sub(a.Time)
		if gap <= threshold {
			continue
		}
		seg := track.Segment{Points: []track.Point{a, b}}
		result = append(result, gapInfo{startTime: a.Time, endTime: b.Time, duration: gap, meters: seg.Length()})
	}
	return result
}

func timeBounds(points []track.Point) (time.Time, time.Time) {
	var start, end time.Time
	for _, pt := range points {
		if !pt.HasTime() {
			continue
		}
		if start.IsZero() || pt.Time.Before(start) {
			start = pt.Time
		}
		if end.IsZero() || pt.Time.After(end) {
			end = pt.Time
		}
	}
	return start, end
}

func parseThresholds(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.Atoi(field)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("%w: %q is not a positive integer", track.ErrInvalidParameter, field)
		}
		out = append(out, v)
	}
	return out, nil
}
