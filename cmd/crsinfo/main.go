package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pspoerri/geocrs/internal/cli"
	"github.com/pspoerri/geocrs/internal/crs"
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
		showVersion bool
		showWKT     bool
	)

	flag.StringVar(&flags.Config, "config", "", "YAML configuration file")
	flag.StringVar(&flags.Catalogue, "catalog", "", "Catalogue file (.csv, .csv.gz) or SQLite database (default: built-in)")
	flag.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.ResolveUnits, "resolve-units", false, "Report the real linear unit of projected systems")
	flag.BoolVar(&showWKT, "wkt", false, "Print the definition text with show, prj and identify")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: crsinfo [flags] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Inspect the coordinate reference system catalogue.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  list [geographic|projected]   List catalogue definitions\n")
		fmt.Fprintf(os.Stderr, "  show <code>                   Describe a catalogue entry\n")
		fmt.Fprintf(os.Stderr, "  prj <file.prj>                Describe the definition in a .prj file\n")
		fmt.Fprintf(os.Stderr, "  identify <file.prj>           Find the catalogue code of a .prj definition\n")
		fmt.Fprintf(os.Stderr, "  utm <lon> <lat>               Print the WGS 84 UTM code for a position\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("crsinfo %s (commit %s, built %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	// UTM codes need no catalogue.
	if args[0] == "utm" {
		if len(args) != 3 {
			log.Fatal("utm needs <lon> <lat>")
		}
		lon, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			log.Fatalf("Longitude: %v", err)
		}
		lat, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			log.Fatalf("Latitude: %v", err)
		}
		code, err := registry.UTMZoneCode(lon, lat)
		if err != nil {
			log.Fatalf("UTM zone: %v", err)
		}
		fmt.Println(code)
		return
	}

	cfg, err := cli.LoadConfig(flags)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env := cli.Open(ctx, cfg, os.Stderr)
	defer env.Close()
	reg, err := env.Registry()
	if err != nil {
		log.Fatalf("Loading catalogue: %v", err)
	}

	switch args[0] {
	case "list":
		kind := ""
		if len(args) > 1 {
			kind = args[1]
		}
		list(reg, kind)

	case "show":
		if len(args) != 2 {
			log.Fatal("show needs <code>")
		}
		code, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Code: %v", err)
		}
		d, err := reg.GetByID(code)
		if err != nil {
			log.Fatalf("Lookup: %v", err)
		}
		describe(d, showWKT)

	case "prj":
		if len(args) != 2 {
			log.Fatal("prj needs <file.prj>")
		}
		d, err := reg.CreateFromPrjFile(args[1])
		if err != nil {
			log.Fatalf("Reading definition: %v", err)
		}
		describe(d, showWKT)

	case "identify":
		if len(args) != 2 {
			log.Fatal("identify needs <file.prj>")
		}
		d, err := reg.CreateFromPrjFile(args[1])
		if err != nil {
			log.Fatalf("Reading definition: %v", err)
		}
		code, ok := reg.Identify(d)
		if !ok {
			fmt.Printf("%s: no equivalent catalogue entry\n", d)
			os.Exit(2)
		}
		match, err := reg.GetByID(code)
		if err != nil {
			log.Fatalf("Lookup: %v", err)
		}
		fmt.Printf("%s is equivalent to %d: %s\n", d, code, match)
		if showWKT {
			fmt.Println(match.WellKnownText)
		}

	default:
		flag.Usage()
		os.Exit(1)
	}
}

func list(reg *registry.Registry, kind string) {
	var defs []*crs.Definition
	switch strings.ToLower(kind) {
	case "", "all":
		defs = append(reg.GeographicCoordinateSystems(), reg.ProjectedCoordinateSystems()...)
	case "geographic", "geog":
		defs = reg.GeographicCoordinateSystems()
	case "projected", "proj":
		defs = reg.ProjectedCoordinateSystems()
	default:
		log.Fatalf("Unknown kind %q (want geographic or projected)", kind)
	}
	for _, d := range defs {
		fmt.Printf("%-8s %-10s %s\n", d.ID, d.Kind, d.Name)
	}
}

func describe(d *crs.Definition, withWKT bool) {
	fmt.Printf("Name:      %s\n", d.Name)
	fmt.Printf("Kind:      %s\n", d.Kind)
	if d.Authority != "" {
		fmt.Printf("Authority: %s\n", d.Authority)
	}
	if d.ID != "" {
		fmt.Printf("ID:        %s\n", d.ID)
	}
	if d.Kind == crs.Projected {
		fmt.Printf("Units:     %g m\n", d.UnitsToMeters)
	}
	fmt.Printf("Area:      %s\n", d.AreaOfUse)
	if withWKT {
		fmt.Printf("\n%s\n", d.WellKnownText)
	}
}
