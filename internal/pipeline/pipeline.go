// Package pipeline runs parse, merge, simplify, enrich, extract and write
// over a batch of input files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/planbiir/trackconv/internal/elevation"
	"github.com/planbiir/trackconv/internal/format"
	"github.com/planbiir/trackconv/internal/merge"
	"github.com/planbiir/trackconv/internal/metrics"
	"github.com/planbiir/trackconv/internal/simplify"
	"github.com/planbiir/trackconv/internal/track"
	"github.com/planbiir/trackconv/internal/waypoint"
)

// Report describes what the in-memory stages did to one output document.
type Report struct {
	Simplify  simplify.Stats  `json:"simplify" yaml:"simplify"`
	Elevation elevation.Stats `json:"elevation" yaml:"elevation"`
	Output    track.Stats     `json:"output" yaml:"output"`
}

func (r *Report) add(o Report) {
	r.Simplify.PointsIn += o.Simplify.PointsIn
	r.Simplify.PointsOut += o.Simplify.PointsOut
	r.Elevation.Queried += o.Elevation.Queried
	r.Elevation.Filled += o.Elevation.Filled
	r.Elevation.Unavailable += o.Elevation.Unavailable
	r.Output.Tracks += o.Output.Tracks
	r.Output.Segments += o.Output.Segments
	r.Output.Points += o.Output.Points
	r.Output.Waypoints += o.Output.Waypoints
	r.Output.ElevationKnown += o.Output.ElevationKnown
	r.Output.DistanceMeters += o.Output.DistanceMeters
	r.Output.Duration += o.Output.Duration
}

// Result summarises a Run.
type Result struct {
	RunID    string        `json:"run_id" yaml:"run_id"`
	Inputs   []string      `json:"inputs" yaml:"inputs"`
	Outputs  []string      `json:"outputs" yaml:"outputs"`
	Failures []*FileError  `json:"-" yaml:"-"`
	Report   Report        `json:"report" yaml:"report"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Failed reports whether any input or output failed.
func (r *Result) Failed() bool { return len(r.Failures) > 0 }

// Runner executes pipelines with fixed options and collaborators.
type Runner struct {
	opts     Options
	enricher *elevation.Enricher
	log      *slog.Logger
	metrics  *metrics.Metrics

	// OnFile, when set, is called once per input after its work is done,
	// with the failure if there was one. Calls are serialised.
	OnFile func(path string, err error)
	mu     sync.Mutex
}

// New validates opts and builds a runner. enricher and m may be nil.
func New(opts Options, enricher *elevation.Enricher, log *slog.Logger, m *metrics.Metrics) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{opts: opts, enricher: enricher, log: log, metrics: m}, nil
}

// Options returns the runner configuration.
func (r *Runner) Options() Options { return r.opts }

// WithOptions returns a runner sharing the collaborators of r.
func (r *Runner) WithOptions(opts Options) (*Runner, error) {
	return New(opts, r.enricher, r.log, r.metrics)
}

// Process runs merge, simplify, enrich and extract over docs in memory.
// The inputs are not modified. A failing stage is returned as *FileError
// without a path.
func (r *Runner) Process(ctx context.Context, docs ...*track.Document) (*track.Document, Report, error) {
	var rep Report

	for i, d := range docs {
		if d == nil {
			continue
		}
		if err := d.Validate(); err != nil {
			return nil, rep, &FileError{Stage: StageParse, Err: fmt.Errorf("document %d: %w", i, err)}
		}
	}

	start := time.Now()
	doc, err := merge.Merge(docs)
	if err != nil {
		return nil, rep, &FileError{Stage: StageMerge, Err: err}
	}
	if doc.IsEmpty() {
		return nil, rep, &FileError{Stage: StageMerge, Err: fmt.Errorf("%w: no tracks or waypoints", track.ErrEmptyInput)}
	}
	r.metrics.ObserveStage(StageMerge, time.Since(start))

	start = time.Now()
	doc, rep.Simplify, err = simplify.Document(doc, float64(r.opts.MinDistanceMeters))
	if err != nil {
		return nil, rep, &FileError{Stage: StageSimplify, Err: err}
	}
	r.metrics.ObserveStage(StageSimplify, time.Since(start))
	r.metrics.Points(rep.Simplify.PointsIn, rep.Simplify.PointsOut)

	if r.opts.IncludeElevation && r.enricher != nil && r.enricher.Source != nil {
		start = time.Now()
		doc, rep.Elevation = r.enricher.Enrich(ctx, doc)
		r.metrics.ObserveStage(StageEnrich, time.Since(start))
		r.metrics.ElevationLookups(rep.Elevation.Queried-rep.Elevation.Unavailable, rep.Elevation.Unavailable)
	}

	if r.opts.ExtractWaypoints {
		start = time.Now()
		doc = waypoint.Extract(doc)
		r.metrics.ObserveStage(StageExtract, time.Since(start))
	}

	rep.Output = doc.Stats()
	return doc, rep, nil
}

// Run expands inputs, processes them and writes the result to output: one
// merged file, or one file per input inside the output directory when
// grouping is per-file. Failures of single inputs are collected in the
// result and never stop the others. The returned error is reserved for
// problems that prevent the run from starting.
func (r *Runner) Run(ctx context.Context, inputs []string, output string) (*Result, error) {
	runID := uuid.NewString()
	log := r.log.With("run_id", runID)
	started := time.Now()

	res := &Result{RunID: runID}
	if output == "" {
		return nil, fmt.Errorf("%w: output path is required", track.ErrInvalidParameter)
	}

	files, failures := ExpandInputs(inputs, output)
	for _, f := range failures {
		r.fail(log, res, f)
	}
	res.Inputs = files
	if len(files) == 0 {
		if len(failures) > 0 {
			res.Elapsed = time.Since(started)
			return res, nil
		}
		return nil, fmt.Errorf("%w: no GPX or KML files in %v", track.ErrEmptyInput, inputs)
	}

	log.Info("run started", "inputs", len(files), "grouping", r.opts.Grouping, "output", output)

	var err error
	if r.opts.Grouping == GroupPerFile {
		err = r.runPerFile(ctx, log, res, files, output)
	} else {
		err = r.runMerged(ctx, log, res, files, output)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(res.Failures, func(i, j int) bool {
		return res.Failures[i].Path < res.Failures[j].Path
	})
	res.Elapsed = time.Since(started)
	log.Info("run complete",
		"outputs", len(res.Outputs),
		"failures", len(res.Failures),
		"points_in", res.Report.Simplify.PointsIn,
		"points_out", res.Report.Simplify.PointsOut,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	return res, nil
}

func (r *Runner) runMerged(ctx context.Context, log *slog.Logger, res *Result, files []string, output string) error {
	kind, err := format.KindFromPath(output)
	if err != nil {
		return fmt.Errorf("output %s: %w", output, err)
	}

	docs := make([]*track.Document, len(files))
	r.forEach(ctx, files, func(i int, path string) error {
		doc, ferr := r.parseFile(ctx, log, path)
		docs[i] = doc
		if ferr != nil {
			r.fail(log, res, ferr)
			return ferr
		}
		return nil
	})

	var parsed []*track.Document
	for _, d := range docs {
		if d != nil {
			parsed = append(parsed, d)
		}
	}
	if len(parsed) == 0 {
		r.fail(log, res, &FileError{Path: output, Stage: StageMerge, Err: fmt.Errorf("%w: every input failed", track.ErrEmptyInput)})
		return nil
	}

	doc, rep, err := r.Process(ctx, parsed...)
	if err != nil {
		r.fail(log, res, withPath(err, output))
		return nil
	}
	res.Report.add(rep)

	if ferr := r.writeDocument(doc, kind, output); ferr != nil {
		r.fail(log, res, ferr)
		return nil
	}
	res.Outputs = append(res.Outputs, output)
	log.Info("output written", "path", output, "format", kind, "tracks", rep.Output.Tracks, "points", rep.Output.Points)
	return nil
}

func (r *Runner) runPerFile(ctx context.Context, log *slog.Logger, res *Result, files []string, outDir string) error {
	var target format.Kind
	if r.opts.TargetFormat != "" {
		k, err := format.ParseKind(r.opts.TargetFormat)
		if err != nil {
			return err
		}
		target = k
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("%w: create output directory: %v", track.ErrWrite, err)
	}

	outputs := planOutputs(files, outDir, target)
	written := make([]string, len(files))
	reports := make([]Report, len(files))

	r.forEach(ctx, files, func(i int, path string) error {
		doc, ferr := r.parseFile(ctx, log, path)
		if ferr != nil {
			r.fail(log, res, ferr)
			return ferr
		}

		out, rep, err := r.Process(ctx, doc)
		if err != nil {
			ferr := withPath(err, path)
			r.fail(log, res, ferr)
			return ferr
		}

		dest := outputs[i]
		if sameFile(dest.path, path) {
			ferr := &FileError{Path: path, Stage: StageWrite, Err: fmt.Errorf("%w: output would overwrite its input", track.ErrInvalidParameter)}
			r.fail(log, res, ferr)
			return ferr
		}
		if ferr := r.writeDocument(out, dest.kind, dest.path); ferr != nil {
			ferr.Path = path
			r.fail(log, res, ferr)
			return ferr
		}

		written[i] = dest.path
		reports[i] = rep
		log.Info("output written", "path", dest.path, "input", path, "format", dest.kind, "points", rep.Output.Points)
		return nil
	})

	for i, w := range written {
		if w != "" {
			res.Outputs = append(res.Outputs, w)
			res.Report.add(reports[i])
		}
	}
	return nil
}

// forEach runs fn for every file on a pool bounded by Options.Workers and
// reports each outcome to OnFile. Errors returned by fn are informational.
func (r *Runner) forEach(ctx context.Context, files []string, fn func(i int, path string) error) {
	workers := r.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			var err error
			if cerr := ctx.Err(); cerr != nil {
				err = &FileError{Path: path, Stage: StageParse, Err: cerr}
			} else {
				err = fn(i, path)
			}
			r.notify(path, err)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) notify(path string, err error) {
	if err == nil {
		r.metrics.FileDone("ok")
	} else {
		r.metrics.FileDone("failed")
	}
	if r.OnFile == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OnFile(path, err)
}

func (r *Runner) parseFile(ctx context.Context, log *slog.Logger, path string) (*track.Document, *FileError) {
	if err := ctx.Err(); err != nil {
		return nil, &FileError{Path: path, Stage: StageParse, Err: err}
	}

	start := time.Now()
	kind, err := format.KindFromPath(path)
	if err != nil {
		return nil, &FileError{Path: path, Stage: StageDiscover, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Stage: StageParse, Err: err}
	}
	doc, err := format.Parse(data, kind)
	if err != nil {
		return nil, &FileError{Path: path, Stage: StageParse, Err: err}
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	r.metrics.ObserveStage(StageParse, time.Since(start))

	log.Debug("file parsed", "path", path, "format", kind, "tracks", len(doc.Tracks), "points", doc.PointCount())
	return doc, nil
}

func (r *Runner) writeDocument(doc *track.Document, kind format.Kind, path string) *FileError {
	start := time.Now()
	data, err := format.Write(doc, kind)
	if err != nil {
		return &FileError{Path: path, Stage: StageWrite, Err: err}
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return &FileError{Path: path, Stage: StageWrite, Err: err}
	}
	r.metrics.ObserveStage(StageWrite, time.Since(start))
	return nil
}

func (r *Runner) fail(log *slog.Logger, res *Result, ferr *FileError) {
	kind := track.KindOf(ferr.Err)
	log.Warn("pipeline failure", "path", ferr.Path, "stage", ferr.Stage, "kind", kind, "error", ferr.Err)
	r.metrics.Failure(ferr.Stage, kind)

	r.mu.Lock()
	res.Failures = append(res.Failures, ferr)
	r.mu.Unlock()
}

func withPath(err error, path string) *FileError {
	var ferr *FileError
	if errors.As(err, &ferr) {
		return &FileError{Path: path, Stage: ferr.Stage, Err: ferr.Err}
	}
	return &FileError{Path: path, Stage: StageMerge, Err: err}
}
