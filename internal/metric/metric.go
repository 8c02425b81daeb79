// Package metric holds the Prometheus instrumentation of the CRS
// subsystem. A nil *Metrics is valid and records nothing.
package metric

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geocrs"

// Results of loading a catalogue entry.
const (
	EntryLoaded         = "loaded"
	EntryBadLine        = "bad_line"
	EntryMalformed      = "malformed"
	EntryUnclassifiable = "unclassifiable"
	EntryDuplicate      = "duplicate"
)

// Metrics is a set of collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	catalogueEntries  *prometheus.CounterVec   // by result
	loadDuration      prometheus.Histogram     // whole catalogue load
	definitions       *prometheus.CounterVec   // by kind or failure
	pipelinesCreated  prometheus.Counter       // successful constructions
	pipelineFailures  *prometheus.CounterVec   // by stage
	openPipelines     prometheus.Gauge         // created minus closed
	pointsTransformed *prometheus.CounterVec   // by result
	transformDuration *prometheus.HistogramVec // by mode
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		catalogueEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "catalogue_entries_total",
			Help:      "Catalogue entries processed while loading, by result",
		}, []string{"result"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "load_duration_seconds",
			Help:      "Time to load a catalogue into a registry",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
		definitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "definitions_parsed_total",
			Help:      "Definitions parsed on demand, by kind or failure",
		}, []string{"result"}),
		pipelinesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "created_total",
			Help:      "Transformation pipelines constructed",
		}),
		pipelineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "construction_failures_total",
			Help:      "Transformation pipeline construction failures, by stage",
		}, []string{"stage"}),
		openPipelines: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "open",
			Help:      "Transformation pipelines created and not yet closed",
		}),
		pointsTransformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "points_total",
			Help:      "Points passed through pipelines, by result",
		}, []string{"result"}),
		transformDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "transform_duration_seconds",
			Help:      "Duration of bulk transform calls",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"mode"}),
	}
	m.registry.MustRegister(
		m.catalogueEntries,
		m.loadDuration,
		m.definitions,
		m.pipelinesCreated,
		m.pipelineFailures,
		m.openPipelines,
		m.pointsTransformed,
		m.transformDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the Prometheus registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) CatalogueEntry(result string) {
	if m == nil {
		return
	}
	m.catalogueEntries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLoad(d time.Duration) {
	if m == nil {
		return
	}
	m.loadDuration.Observe(d.Seconds())
}

func (m *Metrics) DefinitionParsed(result string) {
	if m == nil {
		return
	}
	m.definitions.WithLabelValues(result).Inc()
}

func (m *Metrics) PipelineCreated() {
	if m == nil {
		return
	}
	m.pipelinesCreated.Inc()
	m.openPipelines.Inc()
}

func (m *Metrics) PipelineFailed(stage string) {
	if m == nil {
		return
	}
	m.pipelineFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) PipelineClosed() {
	if m == nil {
		return
	}
	m.openPipelines.Dec()
}

// PointsTransformed records the outcome of one bulk transform call.
func (m *Metrics) PointsTransformed(mode string, ok, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.pointsTransformed.WithLabelValues("ok").Add(float64(ok))
	m.pointsTransformed.WithLabelValues("failed").Add(float64(failed))
	m.transformDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// Serve exposes the metrics on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, m *Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
}
