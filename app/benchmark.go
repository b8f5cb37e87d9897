package app

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Timing aggregates the durations recorded under one name.
type Timing struct {
	Count uint64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Avg returns the mean duration.
func (t Timing) Avg() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// Benchmarks collects per-stage timings. Its lock is independent of the
// capture session lock.
type Benchmarks struct {
	mu     sync.Mutex
	stats  map[string]*Timing
	frames uint64
	start  time.Time
}

func NewBenchmarks() *Benchmarks {
	return &Benchmarks{stats: make(map[string]*Timing), start: time.Now()}
}

// Time starts a measurement and returns the function that records it.
func (b *Benchmarks) Time(name string) func() {
	start := time.Now()
	return func() { b.Record(name, time.Since(start)) }
}

// Record adds one duration under name.
func (b *Benchmarks) Record(name string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.stats[name]
	if !ok {
		t = &Timing{Min: d, Max: d}
		b.stats[name] = t
	}
	t.Count++
	t.Total += d
	if d < t.Min {
		t.Min = d
	}
	if d > t.Max {
		t.Max = d
	}
}

// Frame counts one completed tick for the FPS figure.
func (b *Benchmarks) Frame() {
	b.mu.Lock()
	b.frames++
	b.mu.Unlock()
}

// Snapshot returns a copy of all timings.
func (b *Benchmarks) Snapshot() map[string]Timing {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]Timing, len(b.stats))
	for k, v := range b.stats {
		out[k] = *v
	}
	return out
}

// FPS returns completed ticks per second since the benchmarks were created.
func (b *Benchmarks) FPS() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	el := time.Since(b.start).Seconds()
	if el <= 0 {
		return 0
	}
	return float64(b.frames) / el
}

// Log writes one line per timing, sorted by name, plus the overall FPS.
func (b *Benchmarks) Log(logger *slog.Logger) {
	if logger == nil {
		return
	}
	snap := b.Snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, n := range names {
		t := snap[n]
		logger.Debug("bench",
			"name", n,
			"count", t.Count,
			"avg", t.Avg(),
			"min", t.Min,
			"max", t.Max,
		)
	}
	logger.Debug("bench.fps", "fps", b.FPS())
}
