// Package simplify reduces track point density with perpendicular-distance
// (Douglas-Peucker) simplification.
package simplify

import (
	"fmt"
	"math"

	"github.com/planbiir/trackconv/internal/geo"
	"github.com/planbiir/trackconv/internal/track"
)

// Stats reports how many points a simplification removed.
type Stats struct {
	PointsIn  int `json:"points_in" yaml:"points_in"`
	PointsOut int `json:"points_out" yaml:"points_out"`
}

// Removed returns the number of dropped points.
func (s Stats) Removed() int { return s.PointsIn - s.PointsOut }

// Percent returns the share of dropped points, 0..100.
func (s Stats) Percent() float64 {
	if s.PointsIn == 0 {
		return 0
	}
	return float64(s.Removed()) / float64(s.PointsIn) * 100
}

// span is a pending [first, last] index range whose interior has not been
// decided yet.
type span struct {
	first, last int
}

// Simplify keeps the first and last point of seg and every point whose
// distance to the chord it would be replaced by is strictly greater than
// minDistanceMeters. Points are never reordered or added. When several
// points share the maximum distance, the lowest index wins.
func Simplify(seg track.Segment, minDistanceMeters float64) (track.Segment, error) {
	if err := ValidateDistance(minDistanceMeters); err != nil {
		return track.Segment{}, err
	}
	n := len(seg.Points)
	if n < 2 {
		return track.Segment{}, track.ErrDegenerateSegment
	}
	if n == 2 {
		return track.NewSegment(seg.Points)
	}

	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	// Explicit work stack instead of recursion: depth is bounded by the heap,
	// not the goroutine stack, even for pathological inputs.
	stack := []span{{0, n - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.last-s.first < 2 {
			continue
		}

		a, b := seg.Points[s.first], seg.Points[s.last]
		maxDist := -1.0
		maxIdx := -1
		for i := s.first + 1; i < s.last; i++ {
			p := seg.Points[i]
			d := geo.DistanceToChord(p.Lat, p.Lon, a.Lat, a.Lon, b.Lat, b.Lon)
			if d > maxDist {
				maxDist = d
				maxIdx = i
			}
		}

		if maxDist > minDistanceMeters {
			keep[maxIdx] = true
			stack = append(stack, span{maxIdx, s.last}, span{s.first, maxIdx})
		}
	}

	out := make([]track.Point, 0, n)
	for i, k := range keep {
		if k {
			out = append(out, seg.Points[i])
		}
	}
	return track.Segment{Points: out}, nil
}

// Document simplifies every segment of a copy of doc. Waypoints are left
// untouched and do not count towards the stats.
func Document(doc *track.Document, minDistanceMeters float64) (*track.Document, Stats, error) {
	if err := ValidateDistance(minDistanceMeters); err != nil {
		return nil, Stats{}, err
	}

	out := doc.Clone()
	var stats Stats
	for ti := range out.Tracks {
		trk := &out.Tracks[ti]
		for si := range trk.Segments {
			stats.PointsIn += trk.Segments[si].Len()
			simplified, err := Simplify(trk.Segments[si], minDistanceMeters)
			if err != nil {
				return nil, Stats{}, fmt.Errorf("track %q segment %d: %w", trk.Name, si, err)
			}
			trk.Segments[si] = simplified
			stats.PointsOut += simplified.Len()
		}
	}
	return out, stats, nil
}

// ValidateDistance rejects thresholds that are not strictly positive.
func ValidateDistance(minDistanceMeters float64) error {
	if math.IsNaN(minDistanceMeters) || math.IsInf(minDistanceMeters, 0) || minDistanceMeters <= 0 {
		return fmt.Errorf("%w: minimum distance must be > 0, got %v", track.ErrInvalidParameter, minDistanceMeters)
	}
	return nil
}
