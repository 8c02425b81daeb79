package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pspoerri/geocrs/internal/catalogue"
	"github.com/pspoerri/geocrs/internal/config"
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
		logLevel     string
		resolveUnits bool
		showProg     bool
		showVersion  bool
	)

	flag.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.BoolVar(&resolveUnits, "resolve-units", false, "Resolve the linear unit of projected systems while verifying")
	flag.BoolVar(&showProg, "progress", true, "Show a progress bar on stderr while verifying")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: crscatalog [flags] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Maintain spatial reference catalogues.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  import <source> <catalog.db>    Copy a catalogue into a SQLite database\n")
		fmt.Fprintf(os.Stderr, "  export <source> <out.csv.gz>    Write a catalogue in the gzip line format\n")
		fmt.Fprintf(os.Stderr, "  verify [source]                 Parse every entry and report what would load\n\n")
		fmt.Fprintf(os.Stderr, "A source is a .csv/.csv.gz line file, a .db/.sqlite database, or \"-\"\n")
		fmt.Fprintf(os.Stderr, "for the built-in catalogue.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("crscatalog %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	logger := config.NewLogger(os.Stderr, config.LogConfig{Level: logLevel, Format: "text"})

	switch args[0] {
	case "import":
		if len(args) != 3 {
			log.Fatal("import needs <source> <catalog.db>")
		}
		src, closeSrc := openSource(args[1])
		defer closeSrc()
		store, err := catalogue.OpenStore(args[2])
		if err != nil {
			log.Fatalf("Opening store: %v", err)
		}
		defer store.Close()

		start := time.Now()
		n, err := store.Import(src)
		if err != nil {
			log.Fatalf("Import: %v", err)
		}
		fmt.Printf("Imported %d entries from %s into %s in %s\n",
			n, src.Name(), store.Name(), time.Since(start).Round(time.Millisecond))

	case "export":
		if len(args) != 3 {
			log.Fatal("export needs <source> <out.csv.gz>")
		}
		src, closeSrc := openSource(args[1])
		defer closeSrc()
		f, err := os.Create(args[2])
		if err != nil {
			log.Fatalf("Creating output: %v", err)
		}
		w := bufio.NewWriter(f)
		n, err := catalogue.WriteGzip(w, src)
		if err == nil {
			err = w.Flush()
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			log.Fatalf("Export: %v", err)
		}
		fmt.Printf("Exported %d entries from %s to %s\n", n, src.Name(), args[2])

	case "verify":
		path := "-"
		if len(args) > 1 {
			path = args[1]
		}
		src, closeSrc := openSource(path)
		defer closeSrc()
		if err := verify(src, logger, resolveUnits, showProg); err != nil {
			log.Fatalf("Verify: %v", err)
		}

	default:
		flag.Usage()
		os.Exit(1)
	}
}

func openSource(path string) (catalogue.Source, func()) {
	if path == "-" {
		path = ""
	}
	src, closeFn, err := catalogue.Open(path)
	if err != nil {
		log.Fatalf("Opening catalogue: %v", err)
	}
	return src, func() {
		if err := closeFn(); err != nil {
			log.Printf("Closing catalogue: %v", err)
		}
	}
}

// countingSource reports every entry handed to the registry.
type countingSource struct {
	catalogue.Source
	bar *progress.Bar
}

func (s countingSource) Each(fn func(catalogue.Entry) error) error {
	return s.Source.Each(func(e catalogue.Entry) error {
		defer s.bar.Increment()
		return fn(e)
	})
}

func verify(src catalogue.Source, logger *slog.Logger, resolveUnits, showProg bool) error {
	var bar *progress.Bar
	if showProg {
		total := 0
		if err := src.Each(func(catalogue.Entry) error {
			total++
			return nil
		}); err != nil {
			return err
		}
		bar = progress.New(os.Stderr, "Verifying", "entries", int64(total))
		defer bar.Finish()
		src = countingSource{Source: src, bar: bar}
	}

	reg, stats, err := registry.Load(src,
		registry.WithLogger(logger),
		registry.WithResolveUnits(resolveUnits))
	if err != nil {
		return err
	}
	defer reg.Close()
	if bar != nil {
		bar.Finish()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Source:          %s\n", src.Name())
	fmt.Fprintf(&b, "Geographic:      %d\n", stats.Geographic)
	fmt.Fprintf(&b, "Projected:       %d\n", stats.Projected)
	fmt.Fprintf(&b, "Bad lines:       %d\n", stats.BadLines)
	fmt.Fprintf(&b, "Malformed:       %d\n", stats.Malformed)
	fmt.Fprintf(&b, "Unclassifiable:  %d\n", stats.Unclassifiable)
	fmt.Fprintf(&b, "Duplicate codes: %d\n", stats.Duplicates)
	fmt.Fprintf(&b, "Loaded:          %d of %d in %s\n",
		stats.Loaded(), stats.Loaded()+stats.Skipped(), stats.Duration.Round(time.Millisecond))
	fmt.Print(b.String())
	return nil
}
