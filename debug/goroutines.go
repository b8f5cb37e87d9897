// Package debug holds runtime loggers started only in debug mode. They run
// until the context is cancelled.
package debug

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/dustin/go-humanize"
)

// procMem is the process-level memory the Go heap stats do not cover.
type procMem struct {
	RSS      uint64
	PeakRSS  uint64
	Pagefile uint64
}

// every calls fn on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func()) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}

// StartGoroutineLogger logs goroutine count and stack memory every interval.
func StartGoroutineLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
	every(ctx, interval, func() {
		metrics.Read(samples)
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		logger.Info("goroutine-stacks",
			slog.Uint64("goroutines", samples[0].Value.Uint64()),
			slog.String("stack_inuse", humanize.IBytes(ms.StackInuse)),
			slog.String("stack_sys", humanize.IBytes(ms.StackSys)),
		)
	})
}

// StartMemLogger logs Go heap stats with the process memory every interval.
// A failing process query is logged once and the heap stats keep flowing.
func StartMemLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	var warned bool
	every(ctx, interval, func() {
		pm, err := processMemory()
		if err != nil && !warned {
			logger.Warn("memlog: process memory query failed", slog.String("err", err.Error()))
			warned = true
		}
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		logger.Info("memstats",
			slog.String("heap_alloc", humanize.IBytes(ms.HeapAlloc)),
			slog.String("heap_inuse", humanize.IBytes(ms.HeapInuse)),
			slog.String("heap_sys", humanize.IBytes(ms.HeapSys)),
			slog.String("next_gc", humanize.IBytes(ms.NextGC)),
			slog.Uint64("num_gc", uint64(ms.NumGC)),
			slog.String("rss", humanize.IBytes(pm.RSS)),
			slog.String("peak_rss", humanize.IBytes(pm.PeakRSS)),
			slog.String("pagefile", humanize.IBytes(pm.Pagefile)),
		)
	})
}
