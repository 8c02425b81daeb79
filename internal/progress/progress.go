// Package progress draws an in-place terminal progress bar.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Bar renders an in-place progress bar. It refreshes at a fixed interval
// and supports concurrent Add calls from multiple worker goroutines.
type Bar struct {
	w         io.Writer
	total     int64
	processed atomic.Int64
	label     string
	unit      string
	barWidth  int
	start     time.Time
	done      chan struct{}
	stopped   chan struct{}
	finish    sync.Once
	mu        sync.Mutex
}

// New starts a bar counting up to total items named unit ("points",
// "entries").
func New(w io.Writer, label, unit string, total int64) *Bar {
	b := &Bar{
		w:        w,
		total:    total,
		label:    label,
		unit:     unit,
		barWidth: 30,
		start:    time.Now(),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go b.run()
	return b
}

// Add marks n more items as processed. Safe for concurrent use.
func (b *Bar) Add(n int) {
	b.processed.Add(int64(n))
}

func (b *Bar) Increment() {
	b.processed.Add(1)
}

// Finish stops the refresh loop and prints the final bar state with a
// newline. Later calls do nothing.
func (b *Bar) Finish() {
	b.finish.Do(func() {
		close(b.done)
		<-b.stopped
		b.draw()
		b.mu.Lock()
		fmt.Fprint(b.w, "\n")
		b.mu.Unlock()
	})
}

func (b *Bar) run() {
	defer close(b.stopped)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.draw()
		}
	}
}

func (b *Bar) draw() {
	b.mu.Lock()
	defer b.mu.Unlock()

	processed := b.processed.Load()
	total := b.total

	var frac float64
	if total > 0 {
		frac = float64(processed) / float64(total)
	}
	if frac > 1 {
		frac = 1
	}

	filled := int(float64(b.barWidth) * frac)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", b.barWidth-filled)

	elapsed := time.Since(b.start)
	rate := float64(0)
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(processed) / secs
	}

	fmt.Fprintf(b.w, "\r%s [%s] %3.0f%%  %d/%d %s  %.0f/s  %s\033[K",
		b.label, bar, frac*100, processed, total, b.unit, rate, formatDuration(elapsed))
}

// formatDuration formats a duration concisely (e.g. "1m23s", "45s", "0s").
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) - m*60
	return fmt.Sprintf("%dm%02ds", m, s)
}
