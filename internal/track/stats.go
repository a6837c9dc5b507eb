package track

import (
	"time"

	"github.com/planbiir/trackconv/internal/geo"
)

// Stats summarises a document.
type Stats struct {
	Tracks         int           `json:"tracks" yaml:"tracks"`
	Segments       int           `json:"segments" yaml:"segments"`
	Points         int           `json:"points" yaml:"points"`
	Waypoints      int           `json:"waypoints" yaml:"waypoints"`
	ElevationKnown int           `json:"elevation_known" yaml:"elevation_known"`
	DistanceMeters float64       `json:"distance_m" yaml:"distance_m"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
}

// Stats returns basic statistics about the document. Duration spans the
// earliest to the latest timestamped track point.
func (d *Document) Stats() Stats {
	var s Stats
	var first, last time.Time

	s.Tracks = len(d.Tracks)
	s.Waypoints = len(d.Waypoints)
	for _, trk := range d.Tracks {
		s.Segments += len(trk.Segments)
		for _, seg := range trk.Segments {
			s.Points += len(seg.Points)
			s.DistanceMeters += seg.Length()
			for _, p := range seg.Points {
				if p.Ele.Known() {
					s.ElevationKnown++
				}
				if !p.HasTime() {
					continue
				}
				if first.IsZero() || p.Time.Before(first) {
					first = p.Time
				}
				if last.IsZero() || p.Time.After(last) {
					last = p.Time
				}
			}
		}
	}
	if !first.IsZero() {
		s.Duration = last.Sub(first)
	}
	return s
}

// Bounds is a lat/lon bounding box.
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// Center returns the middle of the box.
func (b Bounds) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Bounds returns the box around every track point and waypoint, and false
// for a document without coordinates.
func (d *Document) Bounds() (Bounds, bool) {
	var b Bounds
	found := false
	extend := func(p Point) {
		if !found {
			b = Bounds{MinLat: p.Lat, MinLon: p.Lon, MaxLat: p.Lat, MaxLon: p.Lon}
			found = true
			return
		}
		b.MinLat = min(b.MinLat, p.Lat)
		b.MinLon = min(b.MinLon, p.Lon)
		b.MaxLat = max(b.MaxLat, p.Lat)
		b.MaxLon = max(b.MaxLon, p.Lon)
	}

	for _, trk := range d.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				extend(p)
			}
		}
	}
	for _, wp := range d.Waypoints {
		extend(wp.Point)
	}
	return b, found
}

func distance(a, b Point) float64 {
	return geo.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}
