package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/planbiir/trackconv/internal/elevation"
	"github.com/planbiir/trackconv/internal/format"
	"github.com/planbiir/trackconv/internal/track"
)

func gpxTrack(name string, lat float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test"><trk><name>%s</name><trkseg>`, name)
	// 10 collinear points ~11 m apart, heading north
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, `<trkpt lat="%.6f" lon="7.0"/>`, lat+float64(i)*0.0001)
	}
	b.WriteString(`</trkseg></trk></gpx>`)
	return b.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newRunner(t *testing.T, mutate func(*Options), enricher *elevation.Enricher) *Runner {
	t.Helper()
	opts := DefaultOptions()
	opts.Workers = 2
	if mutate != nil {
		mutate(&opts)
	}
	r, err := New(opts, enricher, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("defaults must be valid: %v", err)
	}

	bad := []func(*Options){
		func(o *Options) { o.MinDistanceMeters = 0 },
		func(o *Options) { o.Grouping = "zip" },
		func(o *Options) { o.TargetFormat = "csv" },
		func(o *Options) { o.Workers = -1 },
	}
	for i, mutate := range bad {
		o := DefaultOptions()
		mutate(&o)
		if err := o.Validate(); !errors.Is(err, track.ErrInvalidParameter) {
			t.Errorf("case %d: expected ErrInvalidParameter, got %v", i, err)
		}
		if _, err := New(o, nil, nil, nil); !errors.Is(err, track.ErrInvalidParameter) {
			t.Errorf("case %d: New must reject invalid options, got %v", i, err)
		}
	}
}

func TestProcessScenario(t *testing.T) {
	a, err := format.Parse([]byte(gpxTrack("Morning", 46.0)), format.GPX)
	if err != nil {
		t.Fatal(err)
	}
	b, err := format.Parse([]byte(gpxTrack("Morning", 47.0)), format.GPX)
	if err != nil {
		t.Fatal(err)
	}

	src := elevation.SourceFunc(func(ctx context.Context, lat, lon float64) (float64, error) {
		return 1000, nil
	})
	r := newRunner(t, nil, &elevation.Enricher{Source: src})

	doc, rep, err := r.Process(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(doc.Tracks) != 2 || doc.Tracks[0].Name != "Morning" || doc.Tracks[1].Name != "Morning" {
		t.Fatalf("unexpected tracks: %+v", doc.Tracks)
	}
	if len(doc.Waypoints) != 2 || doc.Waypoints[0].Name != "Morning" || doc.Waypoints[1].Name != "Morning (2)" {
		t.Fatalf("unexpected waypoints: %+v", doc.Waypoints)
	}
	for i, trk := range doc.Tracks {
		if n := trk.Segments[0].Len(); n != 2 {
			t.Errorf("track %d: collinear segment should simplify to 2 points, got %d", i, n)
		}
	}
	if rep.Simplify.PointsIn != 20 || rep.Simplify.PointsOut != 4 {
		t.Errorf("unexpected simplify stats %+v", rep.Simplify)
	}
	if rep.Elevation.Filled != 4 || rep.Output.ElevationKnown != 4 {
		t.Errorf("expected every remaining point enriched, got %+v / %+v", rep.Elevation, rep.Output)
	}
	if v, ok := doc.Waypoints[0].Point.Ele.Value(); !ok || v != 1000 {
		t.Errorf("extracted waypoint must carry the enriched elevation, got %v", doc.Waypoints[0].Point.Ele)
	}
}

func TestProcessDisabledStages(t *testing.T) {
	doc, err := format.Parse([]byte(gpxTrack("Solo", 46.0)), format.GPX)
	if err != nil {
		t.Fatal(err)
	}
	called := false
	src := elevation.SourceFunc(func(ctx context.Context, lat, lon float64) (float64, error) {
		called = true
		return 1, nil
	})
	r := newRunner(t, func(o *Options) {
		o.ExtractWaypoints = false
		o.IncludeElevation = false
	}, &elevation.Enricher{Source: src})

	out, _, err := r.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if called {
		t.Errorf("elevation source queried although disabled")
	}
	if len(out.Waypoints) != 0 {
		t.Errorf("waypoints extracted although disabled")
	}
	if out.Tracks[0].Segments[0].Points[0].Ele.Known() {
		t.Errorf("elevation must stay unknown")
	}
}

func TestProcessEmptyInput(t *testing.T) {
	r := newRunner(t, nil, nil)

	_, _, err := r.Process(context.Background())
	if !errors.Is(err, track.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	_, _, err = r.Process(context.Background(), &track.Document{})
	var ferr *FileError
	if !errors.As(err, &ferr) || ferr.Stage != StageMerge || !errors.Is(err, track.ErrEmptyInput) {
		t.Errorf("expected merge-stage ErrEmptyInput, got %v", err)
	}
}

func TestProcessRejectsInvalidDocument(t *testing.T) {
	r := newRunner(t, nil, nil)
	p, _ := track.NewPoint(46.0, 7.0)
	doc := &track.Document{Tracks: []track.Track{{
		Name:     "short",
		Segments: []track.Segment{{Points: []track.Point{p}}},
	}}}

	_, _, err := r.Process(context.Background(), doc)
	var ferr *FileError
	if !errors.As(err, &ferr) || ferr.Stage != StageParse {
		t.Fatalf("expected parse-stage failure, got %v", err)
	}
	if !errors.Is(err, track.ErrDegenerateSegment) || !errors.Is(err, track.ErrMalformedInput) {
		t.Errorf("expected a malformed degenerate segment, got %v", err)
	}
}

func TestRunMergeDirectory(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "b.gpx", gpxTrack("Second", 47.0))
	writeFile(t, in, "a.gpx", gpxTrack("First", 46.0))
	writeFile(t, in, "notes.txt", "ignored")
	out := filepath.Join(t.TempDir(), "merged.kml")

	var mu sync.Mutex
	var seen []string
	r := newRunner(t, nil, nil)
	r.OnFile = func(path string, err error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, filepath.Base(path))
	}

	res, err := r.Run(context.Background(), []string{in}, out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Failed() {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
	if res.RunID == "" {
		t.Errorf("expected a run id")
	}
	if len(res.Inputs) != 2 || filepath.Base(res.Inputs[0]) != "a.gpx" {
		t.Errorf("expected sorted inputs, got %v", res.Inputs)
	}
	if len(seen) != 2 {
		t.Errorf("expected OnFile twice, got %v", seen)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	doc, err := format.Parse(data, format.KML)
	if err != nil {
		t.Fatalf("output is not valid KML: %v", err)
	}
	if len(doc.Tracks) != 2 || doc.Tracks[0].Name != "First" || doc.Tracks[1].Name != "Second" {
		t.Errorf("tracks must follow input order: %+v", doc.Tracks)
	}
	if len(doc.Waypoints) != 2 {
		t.Errorf("expected 2 extracted waypoints, got %d", len(doc.Waypoints))
	}
	if names := listDir(t, filepath.Dir(out)); len(names) != 1 {
		t.Errorf("temporary files left behind: %v", names)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "good.gpx", gpxTrack("Good", 46.0))
	writeFile(t, in, "broken.gpx", "<gpx><trk>")
	writeFile(t, in, "future.gpx", `<gpx version="2.0"></gpx>`)
	out := filepath.Join(t.TempDir(), "out.gpx")

	r := newRunner(t, nil, nil)
	res, err := r.Run(context.Background(), []string{in, filepath.Join(in, "missing.gpx")}, out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Failures) != 3 {
		t.Fatalf("expected 3 failures, got %v", res.Failures)
	}
	kinds := map[string]string{}
	for _, f := range res.Failures {
		kinds[filepath.Base(f.Path)] = f.Stage + "/" + track.KindOf(f.Err)
	}
	if kinds["broken.gpx"] != "parse/malformed_input" {
		t.Errorf("broken.gpx: got %q", kinds["broken.gpx"])
	}
	if kinds["future.gpx"] != "parse/unsupported_version" {
		t.Errorf("future.gpx: got %q", kinds["future.gpx"])
	}
	if !strings.HasPrefix(kinds["missing.gpx"], "discover/") {
		t.Errorf("missing.gpx: got %q", kinds["missing.gpx"])
	}

	if len(res.Outputs) != 1 {
		t.Fatalf("the good file must still be written, outputs %v", res.Outputs)
	}
	doc, err := format.Parse(mustRead(t, out), format.GPX)
	if err != nil || len(doc.Tracks) != 1 || doc.Tracks[0].Name != "Good" {
		t.Errorf("unexpected output %+v (%v)", doc, err)
	}
}

func TestRunPerFile(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "ride.gpx", gpxTrack("Ride", 46.0))
	kmlDoc, _ := format.Write(mustParse(t, gpxTrack("Hike", 45.0)), format.KML)
	writeFile(t, in, "hike.kml", string(kmlDoc))
	writeFile(t, in, "bad.kml", "<kml><Placemark/></kml>")
	out := filepath.Join(t.TempDir(), "converted")

	r := newRunner(t, func(o *Options) { o.Grouping = GroupPerFile }, nil)
	res, err := r.Run(context.Background(), []string{in}, out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Failures) != 1 || filepath.Base(res.Failures[0].Path) != "bad.kml" {
		t.Fatalf("expected only bad.kml to fail, got %v", res.Failures)
	}
	want := []string{"hike.gpx", "ride.kml"}
	got := listDir(t, out)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected outputs %v, got %v", want, got)
	}

	// Forced target format
	out2 := filepath.Join(t.TempDir(), "gpx")
	r = newRunner(t, func(o *Options) {
		o.Grouping = GroupPerFile
		o.TargetFormat = "gpx"
	}, nil)
	if _, err := r.Run(context.Background(), []string{filepath.Join(in, "ride.gpx"), filepath.Join(in, "hike.kml")}, out2); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := listDir(t, out2); strings.Join(got, ",") != "hike.gpx,ride.gpx" {
		t.Errorf("unexpected outputs %v", got)
	}
}

func TestRunRejectsBadOutput(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "a.gpx", gpxTrack("A", 46.0))
	r := newRunner(t, nil, nil)

	if _, err := r.Run(context.Background(), []string{in}, filepath.Join(t.TempDir(), "out.csv")); !errors.Is(err, track.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for unknown output format, got %v", err)
	}
	if _, err := r.Run(context.Background(), []string{t.TempDir()}, filepath.Join(t.TempDir(), "out.gpx")); !errors.Is(err, track.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput for an empty directory, got %v", err)
	}
}

func TestRunNoPartialOutput(t *testing.T) {
	in := t.TempDir()
	writeFile(t, in, "a.gpx", gpxTrack("A", 46.0))
	outDir := filepath.Join(t.TempDir(), "missing-parent")
	out := filepath.Join(outDir, "out.gpx")

	r := newRunner(t, nil, nil)
	res, err := r.Run(context.Background(), []string{in}, out)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Stage != StageWrite || !errors.Is(res.Failures[0], track.ErrWrite) {
		t.Fatalf("expected a write failure, got %v", res.Failures)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("no output may exist after a failed write")
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.gpx")
	if err := WriteFileAtomic(path, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("new")); err != nil {
		t.Fatal(err)
	}
	if got := string(mustRead(t, path)); got != "new" {
		t.Errorf("expected replaced content, got %q", got)
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("temporary files left behind: %v", names)
	}
}

func TestPlanOutputsAvoidsCollisions(t *testing.T) {
	plan := planOutputs([]string{"x/a.gpx", "y/a.gpx", "z/a.kml"}, "out", "")
	got := []string{plan[0].path, plan[1].path, plan[2].path}
	want := []string{filepath.Join("out", "a.kml"), filepath.Join("out", "a_2.kml"), filepath.Join("out", "a.gpx")}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("output %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func mustParse(t *testing.T, gpxContent string) *track.Document {
	t.Helper()
	doc, err := format.Parse([]byte(gpxContent), format.GPX)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}
