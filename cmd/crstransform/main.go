package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pspoerri/geocrs/internal/cli"
	"github.com/pspoerri/geocrs/internal/crs"
	"github.com/pspoerri/geocrs/internal/pipeline"
	"github.com/pspoerri/geocrs/internal/progress"
	"github.com/pspoerri/geocrs/internal/registry"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		flags       cli.Flags
		fromID      int
		toID        int
		fromPrj     string
		toPrj       string
		concurrency int
		batchSize   int
		showProg    bool
		showVersion bool
	)

	flag.StringVar(&flags.Config, "config", "", "YAML configuration file")
	flag.StringVar(&flags.Catalogue, "catalog", "", "Catalogue file (.csv, .csv.gz) or SQLite database (default: built-in)")
	flag.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.IntVar(&fromID, "from", registry.WGS84Code, "Source catalogue code")
	flag.IntVar(&toID, "to", registry.WebMercatorCode, "Target catalogue code")
	flag.StringVar(&fromPrj, "from-prj", "", "Read the source definition from a .prj file (overrides -from)")
	flag.StringVar(&toPrj, "to-prj", "", "Read the target definition from a .prj file (overrides -to)")
	flag.IntVar(&concurrency, "concurrency", 0, "Number of parallel workers (default: configuration, then NumCPU)")
	flag.IntVar(&batchSize, "batch", 0, "Points per work item (default: configuration)")
	flag.BoolVar(&showProg, "progress", false, "Show a progress bar on stderr")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: crstransform [flags] < input.txt > output.txt\n\n")
		fmt.Fprintf(os.Stderr, "Transform \"x y\" coordinate lines between reference systems.\n")
		fmt.Fprintf(os.Stderr, "Geographic coordinates are longitude first. Points that cannot be\n")
		fmt.Fprintf(os.Stderr, "transformed are written as \"inf inf\".\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("crstransform %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := cli.LoadConfig(flags)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if concurrency <= 0 {
		concurrency = cfg.Pipeline.Concurrency
	}
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if batchSize <= 0 {
		batchSize = cfg.Pipeline.BatchSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env := cli.Open(ctx, cfg, os.Stderr)
	defer env.Close()

	// Read input while the catalogue loads.
	points, err := readPoints(os.Stdin)
	if err != nil {
		log.Fatalf("Reading input: %v", err)
	}
	n := len(points) / 2

	reg, err := env.Registry()
	if err != nil {
		log.Fatalf("Loading catalogue: %v", err)
	}
	source, err := resolve(reg, fromID, fromPrj)
	if err != nil {
		log.Fatalf("Source: %v", err)
	}
	target, err := resolve(reg, toID, toPrj)
	if err != nil {
		log.Fatalf("Target: %v", err)
	}

	// Fail early on an impossible pair instead of once per worker.
	probe, err := reg.CreateTransformation(source, target)
	if err != nil {
		log.Fatalf("Transformation: %v", err)
	}
	probe.Close()

	env.Logger.Info("transforming",
		"source", source.String(),
		"target", target.String(),
		"points", n,
		"workers", concurrency)

	pc := pipeline.ParallelConfig{Concurrency: concurrency, BatchSize: batchSize}
	var bar *progress.Bar
	if showProg {
		bar = progress.New(os.Stderr, "Transforming", "points", int64(n))
		pc.Progress = bar.Add
	}

	start := time.Now()
	ok, err := pipeline.Parallel(ctx, func() (*pipeline.Pipeline, error) {
		return reg.CreateTransformation(source, target)
	}, points, n, pc)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		log.Fatalf("Transform: %v", err)
	}

	w := bufio.NewWriter(os.Stdout)
	if err := writePoints(w, points); err != nil {
		log.Fatalf("Writing output: %v", err)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Writing output: %v", err)
	}

	if failed := n - ok; failed > 0 {
		env.Logger.Warn("points could not be transformed", "failed", failed, "points", n)
	}
	env.Logger.Info("done", "points", n, "ok", ok, "elapsed", time.Since(start).Round(time.Millisecond))
}

// resolve picks the .prj file when given, the catalogue code otherwise.
func resolve(reg *registry.Registry, id int, prj string) (*crs.Definition, error) {
	if prj != "" {
		return reg.CreateFromPrjFile(prj)
	}
	return reg.GetByID(id)
}

// readPoints parses whitespace-separated "x y" lines into an interleaved
// buffer. Blank lines and lines starting with '#' are skipped; extra
// columns are ignored.
func readPoints(r io.Reader) ([]float64, error) {
	var points []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: want \"x y\", got %q", line, text)
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, x, y)
	}
	return points, sc.Err()
}

// writePoints writes one "x y" line per point pair. Non-finite values
// are written as "inf".
func writePoints(w io.Writer, points []float64) error {
	for i := 0; i+1 < len(points); i += 2 {
		if _, err := fmt.Fprintf(w, "%s %s\n", formatCoord(points[i]), formatCoord(points[i+1])); err != nil {
			return err
		}
	}
	return nil
}

func formatCoord(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
