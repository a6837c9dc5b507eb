// Package merge combines parsed documents into one.
package merge

import (
	"fmt"
	"strings"

	"github.com/planbiir/trackconv/internal/track"
)

// Merge concatenates the tracks and waypoints of docs in the order given.
// Tracks keep their names even when they collide. Nil entries are skipped;
// an empty list is an ErrEmptyInput. The inputs are not modified.
func Merge(docs []*track.Document) (*track.Document, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents to merge", track.ErrEmptyInput)
	}

	out := &track.Document{}
	var names []string
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		cp := doc.Clone()
		if cp.Name != "" {
			names = append(names, cp.Name)
		}
		out.Tracks = append(out.Tracks, cp.Tracks...)
		out.Waypoints = append(out.Waypoints, cp.Waypoints...)
	}
	out.Name = strings.Join(names, ", ")

	return out, nil
}
