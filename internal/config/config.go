// Package config loads the YAML configuration shared by the command-line
// tools and builds their logger.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Catalogue CatalogueConfig `yaml:"catalogue"`
	Registry  RegistryConfig  `yaml:"registry"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type CatalogueConfig struct {
	// Path of a "<code>;<wkt>" file (gzip when it ends in .gz) or a SQLite
	// catalogue (.db, .sqlite). Empty selects the built-in catalogue.
	Path string `yaml:"path"`
	// Background loads the catalogue while the tool starts up.
	Background bool `yaml:"background"`
}

type RegistryConfig struct {
	// ResolveUnits reports the real linear unit of projected definitions
	// instead of assuming metres.
	ResolveUnits bool `yaml:"resolve_units"`
}

type PipelineConfig struct {
	CacheSize   int `yaml:"cache_size"`
	Concurrency int `yaml:"concurrency"`
	BatchSize   int `yaml:"batch_size"` // points per transform call
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the metrics endpoint
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Pipeline: PipelineConfig{CacheSize: 16, Concurrency: runtime.NumCPU(), BatchSize: 4096},
	}
}

// Load reads path on top of the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if _, ok := parseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Pipeline.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.cache_size must be positive, got %d", c.Pipeline.CacheSize))
	}
	if c.Pipeline.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("pipeline.concurrency must be positive, got %d", c.Pipeline.Concurrency))
	}
	if c.Pipeline.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("pipeline.batch_size must be positive, got %d", c.Pipeline.BatchSize))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// NewLogger builds a logger writing to w. Unknown levels fall back to
// info and unknown formats to text.
func NewLogger(w io.Writer, c LogConfig) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	var handler slog.Handler
	if strings.EqualFold(c.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
