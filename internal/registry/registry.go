// Package registry resolves spatial reference definitions from a catalogue
// of numbered Well-Known-Text entries and builds transformation pipelines
// between them.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pspoerri/geocrs/internal/catalogue"
	"github.com/pspoerri/geocrs/internal/crs"
	"github.com/pspoerri/geocrs/internal/metric"
	"github.com/pspoerri/geocrs/internal/pipeline"
	"github.com/pspoerri/geocrs/internal/proj"
)

// Well-known catalogue codes.
const (
	WGS84Code       = 4326
	WebMercatorCode = 3857
)

type options struct {
	logger       *slog.Logger
	metrics      *metric.Metrics
	resolveUnits bool
}

// Option configures Load.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithResolveUnits makes projected definitions report their real linear
// unit instead of metres.
func WithResolveUnits(resolve bool) Option {
	return func(o *options) { o.resolveUnits = resolve }
}

// LoadStats counts the outcome of a catalogue load.
type LoadStats struct {
	Geographic     int
	Projected      int
	BadLines       int
	Malformed      int
	Unclassifiable int
	Duplicates     int
	Duration       time.Duration
}

// Loaded is the number of definitions in the registry.
func (s LoadStats) Loaded() int { return s.Geographic + s.Projected }

// Skipped is the number of catalogue entries that were not loaded.
func (s LoadStats) Skipped() int {
	return s.BadLines + s.Malformed + s.Unclassifiable + s.Duplicates
}

type candidate struct {
	code int
	name string
}

// Registry holds the definitions of a catalogue. The collections are
// fixed once Load returns and are read without locking. Every call that
// builds engine objects is serialized on one lock.
type Registry struct {
	opts   options
	source string

	raw        map[int]string
	geographic []*crs.Definition
	projected  []*crs.Definition
	index      map[string][]candidate // by fingerprint, in load order

	engine sync.Mutex
	ctx    *proj.Context
}

// Load reads every entry of src. Entries that cannot be split, parsed or
// classified, and repeated codes, are logged and skipped; only a failure
// to read src is returned as an error.
func Load(src catalogue.Source, opts ...Option) (*Registry, LoadStats, error) {
	r := &Registry{
		opts:   options{logger: slog.Default()},
		source: src.Name(),
		raw:    make(map[int]string),
		index:  make(map[string][]candidate),
		ctx:    proj.NewContext(),
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	log := r.opts.logger.With("catalogue", src.Name())

	var stats LoadStats
	start := time.Now()
	err := src.Each(func(e catalogue.Entry) error {
		if e.Err != nil {
			stats.BadLines++
			r.opts.metrics.CatalogueEntry(metric.EntryBadLine)
			log.Debug("skipping catalogue line", "line", e.Line, "error", e.Err)
			return nil
		}
		if _, dup := r.raw[e.Code]; dup {
			stats.Duplicates++
			r.opts.metrics.CatalogueEntry(metric.EntryDuplicate)
			log.Debug("skipping duplicate code", "line", e.Line, "code", e.Code)
			return nil
		}

		d, err := r.parse(e.WKT)
		if err != nil {
			if errors.Is(err, crs.ErrUnclassifiableDefinition) {
				stats.Unclassifiable++
				r.opts.metrics.CatalogueEntry(metric.EntryUnclassifiable)
			} else {
				stats.Malformed++
				r.opts.metrics.CatalogueEntry(metric.EntryMalformed)
			}
			log.Debug("skipping catalogue entry", "line", e.Line, "code", e.Code, "error", err)
			return nil
		}

		d.SetFallbackID(strconv.Itoa(e.Code))
		r.raw[e.Code] = e.WKT
		switch d.Kind {
		case crs.Geographic:
			r.geographic = append(r.geographic, d)
			stats.Geographic++
		case crs.Projected:
			r.projected = append(r.projected, d)
			stats.Projected++
		}
		if fp := d.Fingerprint(); fp != "" {
			r.index[fp] = append(r.index[fp], candidate{code: e.Code, name: d.Name})
		}
		r.opts.metrics.CatalogueEntry(metric.EntryLoaded)
		return nil
	})
	stats.Duration = time.Since(start)
	if err != nil {
		r.ctx.Close()
		return nil, stats, fmt.Errorf("load catalogue %s: %w", src.Name(), err)
	}
	r.opts.metrics.ObserveLoad(stats.Duration)

	if n := stats.Skipped(); n > 0 {
		log.Warn("catalogue entries skipped",
			"skipped", n,
			"bad_lines", stats.BadLines,
			"malformed", stats.Malformed,
			"unclassifiable", stats.Unclassifiable,
			"duplicates", stats.Duplicates)
	}
	log.Info("catalogue loaded",
		"geographic", stats.Geographic,
		"projected", stats.Projected,
		"duration", stats.Duration)
	return r, stats, nil
}

// Source names the catalogue the registry was loaded from.
func (r *Registry) Source() string { return r.source }

// Len returns the number of loaded definitions.
func (r *Registry) Len() int { return len(r.geographic) + len(r.projected) }

// GeographicCoordinateSystems returns the geographic definitions in
// catalogue order. The slice is a copy; the definitions are shared.
func (r *Registry) GeographicCoordinateSystems() []*crs.Definition {
	return append([]*crs.Definition(nil), r.geographic...)
}

// ProjectedCoordinateSystems returns the projected definitions in
// catalogue order. The slice is a copy; the definitions are shared.
func (r *Registry) ProjectedCoordinateSystems() []*crs.Definition {
	return append([]*crs.Definition(nil), r.projected...)
}

// GetByID parses the catalogue entry with the given code. Each call parses
// the text again and returns a new definition. A definition without an
// identifier of its own is given the code.
func (r *Registry) GetByID(id int) (*crs.Definition, error) {
	wkt, ok := r.raw[id]
	if !ok {
		return nil, fmt.Errorf("%w: code %d", crs.ErrNotFound, id)
	}
	d, err := r.CreateFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("code %d: %w", id, err)
	}
	d.SetFallbackID(strconv.Itoa(id))
	return d, nil
}

// WKT returns the catalogue text for a code.
func (r *Registry) WKT(id int) (string, bool) {
	wkt, ok := r.raw[id]
	return wkt, ok
}

// CreateFromWKT parses a definition. Text the engine cannot read fails
// with crs.ErrMalformedDefinition, other coordinate systems than
// geographic and projected with crs.ErrUnclassifiableDefinition.
func (r *Registry) CreateFromWKT(wkt string) (*crs.Definition, error) {
	d, err := r.parse(wkt)
	switch {
	case err == nil:
		r.opts.metrics.DefinitionParsed(d.Kind.String())
	case errors.Is(err, crs.ErrUnclassifiableDefinition):
		r.opts.metrics.DefinitionParsed("unclassifiable")
	default:
		r.opts.metrics.DefinitionParsed("malformed")
	}
	return d, err
}

func (r *Registry) parse(wkt string) (*crs.Definition, error) {
	r.engine.Lock()
	defer r.engine.Unlock()
	return crs.Parse(r.ctx, wkt, crs.Options{ResolveUnits: r.opts.resolveUnits})
}

// CreateFromPrjFile parses the definition stored in a .prj file.
func (r *Registry) CreateFromPrjFile(path string) (*crs.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prj: %w", err)
	}
	wkt := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	d, err := r.CreateFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Identify returns the catalogue code of a definition equivalent to d,
// preferring one with the same name.
func (r *Registry) Identify(d *crs.Definition) (int, bool) {
	if d == nil {
		return 0, false
	}
	candidates := r.index[d.Fingerprint()]
	if len(candidates) == 0 {
		return 0, false
	}
	for _, c := range candidates {
		if strings.EqualFold(c.name, d.Name) {
			return c.code, true
		}
	}
	return candidates[0].code, true
}

// CreateTransformation builds a pipeline from source to target. The
// caller owns the pipeline and must close it.
func (r *Registry) CreateTransformation(source, target *crs.Definition) (*pipeline.Pipeline, error) {
	return pipeline.New(r.ctx, source, target,
		pipeline.WithLocker(&r.engine),
		pipeline.WithMetrics(r.opts.metrics),
		pipeline.WithLogger(r.opts.logger))
}

// CreateTransformationFromWKT parses both definitions and builds a
// pipeline between them.
func (r *Registry) CreateTransformationFromWKT(sourceWKT, targetWKT string) (*pipeline.Pipeline, error) {
	source, err := r.CreateFromWKT(sourceWKT)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	target, err := r.CreateFromWKT(targetWKT)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	return r.CreateTransformation(source, target)
}

// NewPipelineCache returns a cache of pipelines built by the registry.
func (r *Registry) NewPipelineCache(maxEntries int) *pipeline.Cache {
	return pipeline.NewCache(maxEntries, r.CreateTransformation)
}

// Close releases the engine context. Pipelines built by the registry
// should be closed first. The definition collections stay readable.
func (r *Registry) Close() {
	r.engine.Lock()
	defer r.engine.Unlock()
	r.ctx.Close()
}
