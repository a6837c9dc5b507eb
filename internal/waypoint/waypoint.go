// Package waypoint derives start-point waypoints from tracks.
package waypoint

import (
	"fmt"

	"github.com/planbiir/trackconv/internal/track"
)

// Extract returns a copy of doc with one extra waypoint per track, placed
// on the first point of its first segment and named after the track.
// Existing waypoints are kept. A name already taken gets " (2)", " (3)"...
// Tracks without a usable first point are skipped.
func Extract(doc *track.Document) *track.Document {
	out := doc.Clone()
	if out == nil {
		return nil
	}

	used := make(map[string]bool, len(out.Waypoints)+len(out.Tracks))
	for _, wp := range out.Waypoints {
		used[wp.Name] = true
	}

	for i, trk := range out.Tracks {
		if len(trk.Segments) == 0 {
			continue
		}
		first, ok := trk.Segments[0].First()
		if !ok {
			continue
		}

		base := trk.Name
		if base == "" {
			base = fmt.Sprintf("Track %d", i+1)
		}
		name := unique(base, used)
		used[name] = true

		start := first
		start.Extensions = nil
		out.Waypoints = append(out.Waypoints, track.Waypoint{
			Name:        name,
			Description: trk.Description,
			Point:       start,
		})
	}
	return out
}

func unique(base string, used map[string]bool) string {
	if !used[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", base, n)
		if !used[candidate] {
			return candidate
		}
	}
}
