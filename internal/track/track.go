// Package track is the in-memory model every format is parsed into and
// written from: documents own tracks, tracks own segments, segments own an
// ordered list of points.
package track

import (
	"fmt"
	"math"
	"time"
)

// DefaultEpsilon is the coordinate tolerance in degrees (~0.11 m) used when
// comparing points.
const DefaultEpsilon = 1e-6

// Elevation is a height in meters that may be unknown. The zero value is
// unknown; there is no implicit 0 m.
type Elevation struct {
	meters float64
	known  bool
}

// Meters returns a known elevation.
func Meters(m float64) Elevation {
	return Elevation{meters: m, known: true}
}

// Known reports whether the elevation has a value.
func (e Elevation) Known() bool { return e.known }

// Value returns the elevation and whether it is known.
func (e Elevation) Value() (float64, bool) { return e.meters, e.known }

func (e Elevation) String() string {
	if !e.known {
		return "unknown"
	}
	return fmt.Sprintf("%.1fm", e.meters)
}

// Point represents a single GPS fix. Points are values: the With* helpers
// return modified copies.
type Point struct {
	Lat  float64
	Lon  float64
	Ele  Elevation
	Time time.Time // zero when unknown

	// Extensions carries raw GPX <extensions> content so GPX to GPX
	// conversions keep vendor data (heart rate, cadence...).
	Extensions []byte
}

// NewPoint validates the coordinate ranges.
func NewPoint(lat, lon float64) (Point, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return Point{}, fmt.Errorf("%w: coordinate is not a number", ErrMalformedInput)
	}
	if lat < -90 || lat > 90 {
		return Point{}, fmt.Errorf("%w: latitude %v out of range", ErrMalformedInput, lat)
	}
	if lon < -180 || lon > 180 {
		return Point{}, fmt.Errorf("%w: longitude %v out of range", ErrMalformedInput, lon)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

// WithElevation returns a copy of p with a known elevation.
func (p Point) WithElevation(m float64) Point {
	p.Ele = Meters(m)
	return p
}

// WithTime returns a copy of p with the given timestamp.
func (p Point) WithTime(t time.Time) Point {
	p.Time = t
	return p
}

// HasTime reports whether the point carries a timestamp.
func (p Point) HasTime() bool { return !p.Time.IsZero() }

// Equal compares coordinates only, within eps degrees.
func (p Point) Equal(q Point, eps float64) bool {
	return math.Abs(p.Lat-q.Lat) <= eps && math.Abs(p.Lon-q.Lon) <= eps
}

// Segment is a continuous, ordered run of points.
type Segment struct {
	Points []Point
}

// NewSegment copies points into a segment, rejecting fewer than two.
func NewSegment(points []Point) (Segment, error) {
	if len(points) < 2 {
		return Segment{}, ErrDegenerateSegment
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return Segment{Points: cp}, nil
}

// Len returns the number of points.
func (s Segment) Len() int { return len(s.Points) }

// First returns the first point of the segment.
func (s Segment) First() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[0], true
}

// Length returns the 2D length of the segment in meters.
func (s Segment) Length() float64 {
	var total float64
	for i := 1; i < len(s.Points); i++ {
		total += distance(s.Points[i-1], s.Points[i])
	}
	return total
}

// Track is a named recording made of one or more segments.
type Track struct {
	Name        string
	Description string
	Segments    []Segment
}

// Validate checks the track invariants.
func (t Track) Validate() error {
	if len(t.Segments) == 0 {
		return fmt.Errorf("%w: track %q has no segments", ErrMalformedInput, t.Name)
	}
	for i, seg := range t.Segments {
		if seg.Len() < 2 {
			return fmt.Errorf("track %q segment %d: %w", t.Name, i, ErrDegenerateSegment)
		}
	}
	return nil
}

// Waypoint is a labeled point of interest, independent of any track.
type Waypoint struct {
	Name        string
	Description string
	Point       Point
}

// Document is the unit parsers produce and writers consume.
type Document struct {
	Name      string
	Tracks    []Track
	Waypoints []Waypoint
}

// Clone returns a deep copy so stages never alias their input.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Name:      d.Name,
		Tracks:    make([]Track, len(d.Tracks)),
		Waypoints: make([]Waypoint, len(d.Waypoints)),
	}
	for i, trk := range d.Tracks {
		segs := make([]Segment, len(trk.Segments))
		for j, seg := range trk.Segments {
			pts := make([]Point, len(seg.Points))
			copy(pts, seg.Points)
			segs[j] = Segment{Points: pts}
		}
		out.Tracks[i] = Track{Name: trk.Name, Description: trk.Description, Segments: segs}
	}
	copy(out.Waypoints, d.Waypoints)
	return out
}

// Validate checks every track of the document.
func (d *Document) Validate() error {
	for _, trk := range d.Tracks {
		if err := trk.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PointCount returns the number of track points (waypoints excluded).
func (d *Document) PointCount() int {
	n := 0
	for _, trk := range d.Tracks {
		for _, seg := range trk.Segments {
			n += len(seg.Points)
		}
	}
	return n
}

// IsEmpty reports whether the document has neither tracks nor waypoints.
func (d *Document) IsEmpty() bool {
	return d == nil || (len(d.Tracks) == 0 && len(d.Waypoints) == 0)
}
