package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"github.com/planbiir/trackconv/internal/config"
	"github.com/planbiir/trackconv/internal/elevation"
	"github.com/planbiir/trackconv/internal/pipeline"
	"github.com/planbiir/trackconv/internal/track"
)

const version = "trackconv v1.0.0 - GPX/KML track converter"

// inputList collects repeated -i flags.
type inputList []string

func (l *inputList) String() string { return strings.Join(*l, ",") }

func (l *inputList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var inputs inputList
	flag.Var(&inputs, "i", "Input GPX/KML file or directory (repeatable)")
	var (
		output      = flag.String("o", "", "Output file (merge) or directory (per-file)")
		configPath  = flag.String("config", "", "Config file (default: ./trackconv.yaml if present)")
		minDistance = flag.Int("min-distance", 0, "Simplification threshold in meters (config default 20)")
		waypoints   = flag.Bool("waypoints", true, "Add a waypoint at the start of every track")
		withEle     = flag.Bool("elevation", true, "Fill unknown elevations from the configured source")
		group       = flag.String("group", "", "Grouping: merge or per-file")
		target      = flag.String("to", "", "Per-file target format: gpx or kml (default: the other format)")
		workers     = flag.Int("workers", 0, "Parallel files (default: number of CPUs)")
		showStats   = flag.Bool("stats", false, "Show detailed statistics")
		reportPath  = flag.String("report", "", "Write a YAML run report to this path")
		noProgress  = flag.Bool("no-progress", false, "Disable the progress bar")
		showVersion = flag.Bool("version", false, "Show version information")
	)

	flag.Usage = func() {
		fmt.Printf("trackconv - Convert, merge and simplify GPX and KML tracks\n\n")
		fmt.Printf("usage: trackconv -i <file|dir> [-i ...] -o <output>\n\n")
		fmt.Printf("examples:\n")
		fmt.Printf("  trackconv -i ride.gpx -o ride.kml\n")
		fmt.Printf("  trackconv -i day1.gpx -i day2.kml -o trip.gpx -min-distance 10\n")
		fmt.Printf("  trackconv -i ./exports -o ./converted -group per-file -to kml\n\n")
		fmt.Printf("options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return 0
	}
	inputs = append(inputs, flag.Args()...)
	if len(inputs) == 0 || *output == "" {
		flag.Usage()
		return 2
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 2
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := cfg.Pipeline
	if set["min-distance"] {
		opts.MinDistanceMeters = *minDistance
	}
	if set["waypoints"] {
		opts.ExtractWaypoints = *waypoints
	}
	if set["elevation"] {
		opts.IncludeElevation = *withEle
	}
	if set["group"] {
		opts.Grouping = pipeline.Grouping(*group)
	}
	if set["to"] {
		opts.TargetFormat = strings.ToLower(*target)
	}
	if set["workers"] {
		opts.Workers = *workers
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)

	var enricher *elevation.Enricher
	closeEnricher := func() {}
	if opts.IncludeElevation {
		enricher, closeEnricher, err = elevation.Open(cfg.Elevation, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error setting up elevation source: %v\n", err)
			return 2
		}
	}
	defer closeEnricher()

	runner, err := pipeline.New(opts, enricher, logger, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, _ := pipeline.ExpandInputs(inputs, *output)
	if len(files) > 1 && !*noProgress {
		bar := progressbar.Default(int64(len(files)), "Converting")
		runner.OnFile = func(string, error) { _ = bar.Add(1) }
		defer bar.Finish()
	}

	fmt.Printf("📖 Reading %d input file(s)\n", len(files))
	res, err := runner.Run(ctx, inputs, *output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		if errors.Is(err, track.ErrInvalidParameter) {
			return 2
		}
		return 1
	}

	if *showStats {
		printStats(res)
	}
	if *reportPath != "" {
		if err := writeReport(*reportPath, res); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			return 1
		}
	}

	for _, out := range res.Outputs {
		fmt.Printf("💾 Wrote %s\n", out)
	}
	if res.Failed() {
		fmt.Fprintf(os.Stderr, "❌ %d failure(s):\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Fprintf(os.Stderr, "   • %v\n", f)
		}
		return 1
	}

	s := res.Report.Simplify
	fmt.Printf("✅ Converted successfully!\n")
	fmt.Printf("   %d → %d points (%.1f%% removed)\n", s.PointsIn, s.PointsOut, s.Percent())
	return 0
}

func printStats(res *pipeline.Result) {
	rep := res.Report
	fmt.Printf("\n📊 Conversion Statistics:\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("🆔 Run: %s\n", res.RunID)
	fmt.Printf("📂 Files: %d in, %d out, %d failed\n", len(res.Inputs), len(res.Outputs), len(res.Failures))
	fmt.Printf("📍 Points: %d → %d (%d removed, %.1f%%)\n",
		rep.Simplify.PointsIn, rep.Simplify.PointsOut, rep.Simplify.Removed(), rep.Simplify.Percent())
	fmt.Printf("🧭 Tracks: %d (%d segments), waypoints: %d\n",
		rep.Output.Tracks, rep.Output.Segments, rep.Output.Waypoints)
	fmt.Printf("📏 Distance: %.2f km\n", rep.Output.DistanceMeters/1000)
	if rep.Elevation.Queried > 0 {
		fmt.Printf("⛰️  Elevation: %d filled, %d unavailable (%d lookups)\n",
			rep.Elevation.Filled, rep.Elevation.Unavailable, rep.Elevation.Queried)
	}
	fmt.Printf("⏱️  Processing Time: %v\n", res.Elapsed.Round(time.Millisecond))
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
}

type failureEntry struct {
	Path  string `yaml:"path"`
	Stage string `yaml:"stage"`
	Kind  string `yaml:"kind"`
	Error string `yaml:"error"`
}

type runReport struct {
	Result   pipeline.Result `yaml:",inline"`
	Failures []failureEntry  `yaml:"failures,omitempty"`
}

func writeReport(path string, res *pipeline.Result) error {
	rep := runReport{Result: *res}
	for _, f := range res.Failures {
		rep.Failures = append(rep.Failures, failureEntry{
			Path:  f.Path,
			Stage: f.Stage,
			Kind:  track.KindOf(f.Err),
			Error: f.Err.Error(),
		})
	}

	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}
