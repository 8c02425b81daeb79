// Package pipeline transforms interleaved coordinate buffers between two
// spatial reference definitions.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pspoerri/geocrs/internal/crs"
	"github.com/pspoerri/geocrs/internal/metric"
	"github.com/pspoerri/geocrs/internal/proj"
)

var (
	// ErrPipelineConstruction is matched by every *ConstructionError.
	ErrPipelineConstruction = errors.New("pipeline: construction failed")
	ErrBufferTooSmall       = errors.New("pipeline: buffer too small")
	ErrClosed               = errors.New("pipeline: closed")
	ErrInvalidArgument      = crs.ErrInvalidArgument
)

// Stage names the construction step that failed.
type Stage string

const (
	StageCreate    Stage = "create"
	StageNormalize Stage = "normalize"
)

// ConstructionError reports an engine failure while building a pipeline.
type ConstructionError struct {
	Stage  Stage
	Source string
	Target string
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("pipeline %s -> %s: %s: %v", e.Source, e.Target, e.Stage, e.Err)
}

func (e *ConstructionError) Unwrap() []error {
	return []error{ErrPipelineConstruction, e.Err}
}

type options struct {
	locker  sync.Locker
	metrics *metric.Metrics
	logger  *slog.Logger
}

// Option configures New.
type Option func(*options)

// WithLocker serializes construction on l, typically the lock guarding
// the engine context shared with other callers.
func WithLocker(l sync.Locker) Option {
	return func(o *options) { o.locker = l }
}

func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Pipeline owns one engine operation between a source and a target.
// Coordinates are x/y in longitude/latitude or easting/northing order.
// Calls on one pipeline are serialized; use one pipeline per goroutine
// for parallel work.
type Pipeline struct {
	id      uuid.UUID
	source  *crs.Definition
	target  *crs.Definition
	metrics *metric.Metrics

	mu     sync.Mutex
	op     *proj.Object
	closed bool
}

// New builds a pipeline from source to target on ctx.
func New(ctx *proj.Context, source, target *crs.Definition, opts ...Option) (*Pipeline, error) {
	if ctx == nil || source == nil || target == nil {
		return nil, fmt.Errorf("%w: nil context, source or target", ErrInvalidArgument)
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker != nil {
		o.locker.Lock()
		defer o.locker.Unlock()
	}

	fail := func(stage Stage, err error) error {
		o.metrics.PipelineFailed(string(stage))
		return &ConstructionError{Stage: stage, Source: source.String(), Target: target.String(), Err: err}
	}

	raw, err := ctx.CreateCRSToCRS(source.WellKnownText, target.WellKnownText)
	if err != nil {
		return nil, fail(StageCreate, err)
	}
	op, err := ctx.NormalizeForVisualization(raw)
	raw.Destroy()
	if err != nil {
		return nil, fail(StageNormalize, err)
	}

	p := &Pipeline{
		id:      uuid.New(),
		source:  source,
		target:  target,
		metrics: o.metrics,
		op:      op,
	}
	runtime.SetFinalizer(p, (*Pipeline).Close)
	o.metrics.PipelineCreated()
	o.logger.Debug("pipeline created", "id", p.id, "source", source.String(), "target", target.String())
	return p, nil
}

func (p *Pipeline) ID() uuid.UUID           { return p.id }
func (p *Pipeline) Source() *crs.Definition { return p.source }
func (p *Pipeline) Target() *crs.Definition { return p.target }

// Transform transforms the first pointCount x/y pairs of points in place
// and returns how many succeeded. Failed points are set to +Inf.
func (p *Pipeline) Transform(points []float64, pointCount int) (int, error) {
	return p.TransformRange(points, 0, pointCount)
}

// TransformRange transforms pointCount pairs starting at pair index start.
func (p *Pipeline) TransformRange(points []float64, start, pointCount int) (int, error) {
	return p.transform(points, start, pointCount, "serial")
}

func (p *Pipeline) transform(points []float64, start, pointCount int, mode string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}
	if start < 0 || pointCount < 0 {
		return 0, fmt.Errorf("%w: start %d, count %d", ErrInvalidArgument, start, pointCount)
	}
	if pointCount == 0 {
		return 0, nil
	}
	end := 2 * (start + pointCount)
	if len(points) < end {
		return 0, fmt.Errorf("%w: %d points from %d need %d values, have %d",
			ErrBufferTooSmall, pointCount, start, end, len(points))
	}

	began := time.Now()
	n, err := p.op.TransXY(proj.Fwd, points[2*start:end], 2, pointCount)
	if err != nil {
		return n, fmt.Errorf("transform %s: %w", p.op.Name(), err)
	}
	p.metrics.PointsTransformed(mode, n, pointCount-n, time.Since(began))
	return n, nil
}

// Close releases the engine operation. Calling Close more than once is a
// no-op.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.op.Destroy()
	p.op = nil
	p.metrics.PipelineClosed()
	runtime.SetFinalizer(p, nil)
}
