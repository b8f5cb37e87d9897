package display

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Watcher polls the topology and invokes OnChange when the display bounds or
// identity change. OnChange runs on the watcher goroutine and must not block.
type Watcher struct {
	Topology Topology
	OnChange func(prev, next Display)
	Logger   *slog.Logger
	interval time.Duration
	running  atomic.Bool
	done     chan struct{}
	last     Display
	seeded   bool
}

// NewWatcher constructs a watcher polling every interval (500ms when zero).
func NewWatcher(topo Topology, interval time.Duration, onChange func(prev, next Display), logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Watcher{Topology: topo, OnChange: onChange, Logger: logger, interval: interval}
}

func (w *Watcher) Start() {
	if w.running.Load() {
		return
	}
	w.done = make(chan struct{})
	w.running.Store(true)
	go w.loop(w.done)
}

func (w *Watcher) Stop() {
	if !w.running.Load() {
		return
	}
	close(w.done)
	w.running.Store(false)
}

func (w *Watcher) loop(done chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.poll()
	for {
		select {
		case <-ticker.C:
			w.poll()
		case <-done:
			return
		}
	}
}

func (w *Watcher) poll() {
	if w.Topology == nil {
		return
	}
	cur, err := w.Topology.Current()
	if err != nil {
		if w.Logger != nil {
			w.Logger.Error("display query", "error", err)
		}
		return
	}
	if !w.seeded {
		w.last, w.seeded = cur, true
		return
	}
	if cur == w.last {
		return
	}
	prev := w.last
	w.last = cur
	if w.Logger != nil {
		w.Logger.Info("display changed", "from", prev.Bounds.String(), "to", cur.Bounds.String(), "index", cur.Index)
	}
	if w.OnChange != nil {
		w.OnChange(prev, cur)
	}
}
