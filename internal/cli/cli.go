// Package cli wires configuration, logging, metrics and the registry for
// the command-line tools.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pspoerri/geocrs/internal/catalogue"
	"github.com/pspoerri/geocrs/internal/config"
	"github.com/pspoerri/geocrs/internal/metric"
	"github.com/pspoerri/geocrs/internal/registry"
)

// Flags are the command-line settings shared by the tools. Empty or zero
// values leave the configuration file untouched.
type Flags struct {
	Config       string
	Catalogue    string
	MetricsAddr  string
	LogLevel     string
	ResolveUnits bool
}

// LoadConfig reads f.Config, or the defaults when it is empty, and applies
// the flag overrides.
func LoadConfig(f Flags) (config.Config, error) {
	cfg := config.Default()
	if f.Config != "" {
		var err error
		if cfg, err = config.Load(f.Config); err != nil {
			return cfg, err
		}
	}
	if f.Catalogue != "" {
		cfg.Catalogue.Path = f.Catalogue
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.ResolveUnits {
		cfg.Registry.ResolveUnits = true
	}
	return cfg, cfg.Validate()
}

// Env is the runtime of one tool invocation.
type Env struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metric.Metrics

	lazy  *registry.Lazy
	stats registry.LoadStats
}

// Open builds the logger and metrics and starts loading the registry,
// in the background when the configuration asks for it. The metrics
// endpoint, if configured, is served until ctx is done.
func Open(ctx context.Context, cfg config.Config, logOut io.Writer) *Env {
	e := &Env{
		Config:  cfg,
		Logger:  config.NewLogger(logOut, cfg.Log),
		Metrics: metric.New(),
	}
	if cfg.Metrics.Addr != "" {
		metric.Serve(ctx, cfg.Metrics.Addr, e.Metrics, e.Logger)
	}
	e.lazy = registry.NewLazy(e.load)
	if cfg.Catalogue.Background {
		e.lazy.Start()
	}
	return e
}

func (e *Env) load() (*registry.Registry, error) {
	src, closeSource, err := catalogue.Open(e.Config.Catalogue.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer closeSource()

	r, stats, err := registry.Load(src,
		registry.WithLogger(e.Logger),
		registry.WithMetrics(e.Metrics),
		registry.WithResolveUnits(e.Config.Registry.ResolveUnits))
	e.stats = stats
	return r, err
}

// Registry waits for the registry to be loaded.
func (e *Env) Registry() (*registry.Registry, error) {
	return e.lazy.Get()
}

// Stats returns the statistics of the registry load, waiting for it.
func (e *Env) Stats() registry.LoadStats {
	_, _ = e.lazy.Get()
	return e.stats
}

// Close releases the registry if it was loaded.
func (e *Env) Close() {
	select {
	case <-e.lazy.Ready():
		if r, err := e.lazy.Get(); err == nil {
			r.Close()
		}
	default:
	}
}
