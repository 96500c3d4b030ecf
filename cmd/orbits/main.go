// Command orbits decodes a TLE file into orbital elements and prints them,
// or samples each orbit into Cartesian points for plotting.
//
//	orbits -input stations.tle
//	orbits -input stations.tle -project -samples 360 -ground-track -gmst-time 2021-10-02T14:11:00Z > iss.csv
//	orbits -input stations.tle -format yaml -out stations.yaml
//	orbits -elements stations.yaml -project
//
// Records that cannot be decoded are reported on stderr and skipped; the
// exit status only reflects them when -strict is set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/orbit-tracer/core"
	"github.com/signalsfoundry/orbit-tracer/internal/app"
	"github.com/signalsfoundry/orbit-tracer/internal/config"
	"github.com/signalsfoundry/orbit-tracer/internal/export"
	"github.com/signalsfoundry/orbit-tracer/internal/logging"
	"github.com/signalsfoundry/orbit-tracer/model"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// errSkipped is returned under -strict when any record was dropped.
var errSkipped = errors.New("some TLE records were skipped")

type options struct {
	configPath  string
	input       string
	elements    string
	output      string
	body        string
	mu          float64
	samples     int
	object      string
	format      string
	project     bool
	groundTrack bool
	earthFixed  bool
	gmst        float64
	gmstTime    string
	db          string
	store       bool
	textfile    string
	logLevel    string
	strict      bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, set, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := loadConfig(opts, set)
	if err != nil {
		fmt.Fprintf(stderr, "orbits: %v\n", err)
		return exitUsage
	}

	logCfg := cfg.Logging()
	logCfg.Output = stderr
	ctx, log := logging.WithRunLogger(context.Background(), logging.New(logCfg))
	ctx = logging.ContextWithLogger(ctx, log)

	a, err := app.New(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		fmt.Fprintf(stderr, "orbits: %v\n", err)
		return exitUsage
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			log.Warn(ctx, "shutdown failed", logging.Err(err))
		}
	}()

	if err := execute(ctx, a, opts, stdin, stdout); err != nil {
		if errors.Is(err, errSkipped) {
			log.Error(ctx, "strict mode", logging.Err(err))
		} else {
			fmt.Fprintf(stderr, "orbits: %v\n", err)
		}
		return exitFailure
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, map[string]bool, error) {
	var o options
	fs := flag.NewFlagSet("orbits", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.configPath, "config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	fs.StringVar(&o.input, "input", "-", "TLE file to read, - for stdin")
	fs.StringVar(&o.elements, "elements", "", "read element records (YAML or JSON, as written by -format yaml/json) instead of TLE input")
	fs.StringVar(&o.output, "out", "-", "file to write, - for stdout")
	fs.StringVar(&o.body, "body", "", "central body: "+fmt.Sprint(model.BodyNames()))
	fs.Float64Var(&o.mu, "mu", 0, "gravitational parameter in km^3/s^2; overrides -body")
	fs.IntVar(&o.samples, "samples", 0, "points per projected orbit")
	fs.StringVar(&o.object, "object", "", "only keep elements with this name")
	fs.StringVar(&o.format, "format", "table", "element output: table, json, yaml or csv")
	fs.BoolVar(&o.project, "project", false, "write projected points as CSV instead of elements")
	fs.BoolVar(&o.groundTrack, "ground-track", false, "add latitude/longitude/altitude columns to -project output")
	fs.BoolVar(&o.earthFixed, "earth-fixed", false, "rotate -project points into the Earth-fixed frame at the sidereal angle")
	fs.Float64Var(&o.gmst, "gmst", 0, "Greenwich sidereal angle in radians for -ground-track")
	fs.StringVar(&o.gmstTime, "gmst-time", "", "RFC 3339 time to derive the sidereal angle from; overrides -gmst")
	fs.StringVar(&o.db, "db", "", "SQLite catalog file; implies -store")
	fs.BoolVar(&o.store, "store", false, "add decoded elements to the catalog")
	fs.StringVar(&o.textfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&o.strict, "strict", false, "exit non-zero when any record is skipped")

	if err := fs.Parse(args); err != nil {
		return o, nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["elements"] && set["input"] {
		fmt.Fprintln(stderr, "orbits: -elements and -input are mutually exclusive")
		return o, nil, errors.New("conflicting inputs")
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "orbits: unexpected arguments %q\n", fs.Args())
		return o, nil, errors.New("unexpected arguments")
	}
	return o, set, nil
}

// loadConfig layers explicitly set flags over the file and environment.
func loadConfig(o options, set map[string]bool) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if set["body"] {
		cfg.Body = o.body
		if !set["mu"] {
			cfg.Mu = 0
		}
	}
	if set["mu"] {
		cfg.Mu = o.mu
	}
	if set["samples"] {
		cfg.Samples = o.samples
	}
	if set["db"] {
		cfg.Catalog = config.CatalogConfig{Driver: "sqlite", DSN: o.db}
	}
	if set["metrics-textfile"] {
		cfg.Metrics.Textfile = o.textfile
	}
	if set["log-level"] {
		cfg.Log.Level = o.logLevel
	}
	if _, err := export.ParseFormat(o.format); err != nil {
		return nil, err
	}
	if o.gmstTime != "" {
		if _, err := time.Parse(time.RFC3339, o.gmstTime); err != nil {
			return nil, fmt.Errorf("-gmst-time: %w", err)
		}
	}
	return cfg, nil
}

func execute(ctx context.Context, a *app.App, o options, stdin io.Reader, stdout io.Writer) error {
	log := logging.FromContext(ctx, a.Log)

	res, err := load(ctx, a, o, stdin)
	if err != nil {
		return err
	}

	if o.store || o.db != "" {
		entries, err := a.Catalog.Put(ctx, res.Elements...)
		if err != nil {
			return fmt.Errorf("store elements: %w", err)
		}
		log.Info(ctx, "stored elements", logging.Int("count", len(entries)))
	}

	elements := res.Elements
	if o.object != "" {
		elements = filterByName(elements, o.object)
		if len(elements) == 0 {
			return fmt.Errorf("no decoded element named %q", o.object)
		}
	}

	out, closeOut, err := openOutput(o.output, stdout)
	if err != nil {
		return err
	}
	if o.project {
		err = writeProjections(ctx, a, o, elements, out)
	} else {
		format, _ := export.ParseFormat(o.format)
		err = export.WriteElements(out, format, elements, a.Decoder.Mu())
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if path := a.Config.Metrics.Textfile; path != "" {
		if err := a.Metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	}

	if o.strict && len(res.Skipped) > 0 {
		return fmt.Errorf("%w: %d of %d", errSkipped, len(res.Skipped), len(res.Skipped)+len(res.Elements))
	}
	return nil
}

func writeProjections(ctx context.Context, a *app.App, o options, elements []model.OrbitalElement, out io.Writer) error {
	gmst := o.gmst
	if o.gmstTime != "" {
		t, err := time.Parse(time.RFC3339, o.gmstTime)
		if err != nil {
			return fmt.Errorf("-gmst-time: %w", err)
		}
		gmst = core.GMSTAt(t)
	}

	projections := make([]export.Projection, 0, len(elements))
	for _, el := range elements {
		points, err := a.Projector.Project(ctx, el, 0)
		if err != nil {
			return fmt.Errorf("project %q: %w", el.Name(), err)
		}
		p := export.Projection{Name: el.Name(), Points: points}
		if o.groundTrack {
			p.Ground = core.GroundTrack(points, gmst)
		}
		if o.earthFixed {
			p.Points = core.ECEFTrack(points, gmst)
		}
		projections = append(projections, p)
	}
	logging.FromContext(ctx, a.Log).Debug(ctx, "projected elements",
		logging.Int("count", len(projections)),
		logging.Int("samples", a.Projector.DefaultSamples()),
		logging.Bool("ground_track", o.groundTrack),
		logging.Bool("earth_fixed", o.earthFixed),
		logging.Float64("gmst_rad", gmst),
	)
	return export.WriteProjectionsCSV(out, projections)
}

// load decodes the TLE input, or reads ready-made element records when
// -elements is set.
func load(ctx context.Context, a *app.App, o options, stdin io.Reader) (core.DecodeResult, error) {
	log := logging.FromContext(ctx, a.Log)
	if o.elements != "" {
		f, err := os.Open(o.elements)
		if err != nil {
			return core.DecodeResult{}, fmt.Errorf("open elements: %w", err)
		}
		defer f.Close()
		elements, err := export.ReadElementsYAML(f)
		if err != nil {
			return core.DecodeResult{}, fmt.Errorf("read %s: %w", o.elements, err)
		}
		log.Info(ctx, "loaded element records",
			logging.String("elements", o.elements),
			logging.Int("count", len(elements)),
		)
		return core.DecodeResult{Elements: elements}, nil
	}

	lines, err := readInput(o.input, stdin)
	if err != nil {
		return core.DecodeResult{}, err
	}
	start := time.Now()
	res := a.Decoder.Decode(ctx, lines)
	log.Info(ctx, "decoded TLE input",
		logging.String("input", o.input),
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("decoded", len(res.Elements)),
		logging.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func readInput(path string, stdin io.Reader) ([]string, error) {
	if path == "" || path == "-" {
		return core.ReadLines(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return core.ReadLines(f)
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

func filterByName(elements []model.OrbitalElement, name string) []model.OrbitalElement {
	var out []model.OrbitalElement
	for _, el := range elements {
		if el.Name() == name {
			out = append(out, el)
		}
	}
	return out
}
