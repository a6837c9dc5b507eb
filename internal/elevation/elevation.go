// Package elevation fills unknown point elevations from an injected source.
package elevation

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/planbiir/trackconv/internal/track"
)

// Source looks up the ground elevation of a coordinate. Any error means the
// value is unavailable; implementations should wrap
// track.ErrElevationUnavailable when they know that is the case.
type Source interface {
	Lookup(ctx context.Context, lat, lon float64) (float64, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, lat, lon float64) (float64, error)

// Lookup implements Source.
func (f SourceFunc) Lookup(ctx context.Context, lat, lon float64) (float64, error) {
	return f(ctx, lat, lon)
}

const (
	DefaultTimeout = 5 * time.Second
	DefaultWorkers = 8
)

// Stats counts the outcome of one enrichment.
type Stats struct {
	Queried     int `json:"queried" yaml:"queried"`
	Filled      int `json:"filled" yaml:"filled"`
	Unavailable int `json:"unavailable" yaml:"unavailable"`
}

// Enricher queries Source for every point without elevation.
type Enricher struct {
	Source  Source
	Workers int           // concurrent lookups, DefaultWorkers when 0
	Timeout time.Duration // per lookup, DefaultTimeout when 0
	Logger  *slog.Logger
}

type coord struct {
	lat, lon float64
}

type lookupResult struct {
	ele float64
	ok  bool
}

// Enrich returns a copy of doc where track points and waypoints with an
// unknown elevation carry the value from the source. Known elevations are
// never touched. Each distinct coordinate is looked up once; a failed or
// timed-out lookup leaves its points unknown and is only counted.
func (e *Enricher) Enrich(ctx context.Context, doc *track.Document) (*track.Document, Stats) {
	out := doc.Clone()
	if e == nil || e.Source == nil || out == nil {
		return out, Stats{}
	}

	// Collect unique coordinates in document order so that lookup indices
	// are stable.
	index := make(map[coord]int)
	var coords []coord
	visit := func(p *track.Point) {
		if p.Ele.Known() {
			return
		}
		c := coord{p.Lat, p.Lon}
		if _, seen := index[c]; !seen {
			index[c] = len(coords)
			coords = append(coords, c)
		}
	}
	eachPoint(out, visit)

	if len(coords) == 0 {
		return out, Stats{}
	}

	results := e.lookupAll(ctx, coords)

	stats := Stats{Queried: len(coords)}
	for _, r := range results {
		if !r.ok {
			stats.Unavailable++
		}
	}

	eachPoint(out, func(p *track.Point) {
		if p.Ele.Known() {
			return
		}
		if r := results[index[coord{p.Lat, p.Lon}]]; r.ok {
			p.Ele = track.Meters(r.ele)
			stats.Filled++
		}
	})

	return out, stats
}

// lookupAll resolves coords on a bounded pool. Each goroutine writes only
// its own slot of the result slice.
func (e *Enricher) lookupAll(ctx context.Context, coords []coord) []lookupResult {
	workers := e.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	workers = min(workers, runtime.NumCPU()*4, len(coords))
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]lookupResult, len(coords))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, c := range coords {
		g.Go(func() error {
			ele, err := lookupWithin(ctx, e.Source, c, timeout)
			if err != nil {
				logger.Debug("elevation unavailable", "lat", c.lat, "lon", c.lon, "error", err)
				return nil
			}
			results[i] = lookupResult{ele: ele, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// lookupWithin bounds a single lookup by timeout even when the source
// ignores its context. A late answer is discarded.
func lookupWithin(ctx context.Context, src Source, c coord, timeout time.Duration) (float64, error) {
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type answer struct {
		ele float64
		err error
	}
	done := make(chan answer, 1)
	go func() {
		ele, err := src.Lookup(lctx, c.lat, c.lon)
		done <- answer{ele, err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			return 0, a.err
		}
		if err := lctx.Err(); err != nil {
			return 0, err
		}
		return a.ele, nil
	case <-lctx.Done():
		return 0, lctx.Err()
	}
}

func eachPoint(doc *track.Document, fn func(p *track.Point)) {
	for ti := range doc.Tracks {
		for si := range doc.Tracks[ti].Segments {
			pts := doc.Tracks[ti].Segments[si].Points
			for pi := range pts {
				fn(&pts[pi])
			}
		}
	}
	for wi := range doc.Waypoints {
		fn(&doc.Waypoints[wi].Point)
	}
}
