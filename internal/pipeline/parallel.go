package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ParallelConfig controls Parallel.
type ParallelConfig struct {
	Concurrency int // worker goroutines, each with its own pipeline
	BatchSize   int // points per transform call
	// Progress, when set, is called from the workers after each batch with
	// the number of points in it.
	Progress func(points int)
}

type batch struct {
	start int
	count int
}

// Parallel transforms the first pointCount pairs of points in place using
// cfg.Concurrency workers. Each worker builds its own pipeline with
// newPipeline and closes it when done. It returns the number of points
// transformed successfully.
func Parallel(ctx context.Context, newPipeline func() (*Pipeline, error), points []float64, pointCount int, cfg ParallelConfig) (int, error) {
	if pointCount < 0 {
		return 0, fmt.Errorf("%w: count %d", ErrInvalidArgument, pointCount)
	}
	if len(points) < 2*pointCount {
		return 0, fmt.Errorf("%w: %d points need %d values, have %d",
			ErrBufferTooSmall, pointCount, 2*pointCount, len(points))
	}
	if pointCount == 0 {
		return 0, nil
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 4096
	}
	batches := (pointCount + cfg.BatchSize - 1) / cfg.BatchSize
	if cfg.Concurrency > batches {
		cfg.Concurrency = batches
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan batch, cfg.Concurrency*2)
	var wg sync.WaitGroup
	var done atomic.Int64
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
		cancel()
	}

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := newPipeline()
			if err != nil {
				fail(err)
				return
			}
			defer p.Close()
			for job := range jobs {
				if ctx.Err() != nil {
					continue
				}
				n, err := p.transform(points, job.start, job.count, "parallel")
				if err != nil {
					fail(fmt.Errorf("points %d-%d: %w", job.start, job.start+job.count-1, err))
					continue
				}
				done.Add(int64(n))
				if cfg.Progress != nil {
					cfg.Progress(job.count)
				}
			}
		}()
	}

feed:
	for start := 0; start < pointCount; start += cfg.BatchSize {
		job := batch{start: start, count: min(cfg.BatchSize, pointCount-start)}
		select {
		case jobs <- job:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return int(done.Load()), err
	default:
	}
	if err := ctx.Err(); err != nil {
		return int(done.Load()), err
	}
	return int(done.Load()), nil
}
