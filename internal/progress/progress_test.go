package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer written by the refresh goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestBarFinish(t *testing.T) {
	var out syncBuffer
	b := New(&out, "transform", "points", 200)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				b.Add(2)
			}
		}()
	}
	wg.Wait()
	b.Finish()
	b.Finish()

	got := out.String()
	last := got[strings.LastIndex(got, "\r"):]
	if !strings.Contains(last, "100%") || !strings.Contains(last, "200/200 points") {
		t.Errorf("final bar = %q", last)
	}
	if !strings.HasSuffix(got, "\n") || strings.Count(got, "\n") != 1 {
		t.Errorf("want exactly one trailing newline, got %q", got)
	}
}

func TestBarOverflowAndEmpty(t *testing.T) {
	var out syncBuffer
	b := New(&out, "load", "entries", 0)
	b.Increment()
	b.Finish()
	if !strings.Contains(out.String(), "  0%") {
		t.Errorf("empty total should draw 0%%, got %q", out.String())
	}

	var over syncBuffer
	b = New(&over, "load", "entries", 1)
	b.Add(5)
	b.Finish()
	if !strings.Contains(over.String(), "100%") {
		t.Errorf("overflow should clamp to 100%%, got %q", over.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45*time.Second + 300*time.Millisecond, "45s"},
		{83 * time.Second, "1m23s"},
		{10*time.Minute + 5*time.Second, "10m05s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
