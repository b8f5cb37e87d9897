// Package telemetry holds the presentation-side sinks the aim loop reports to:
// user notices and the detected-target overlay. Both are pure sinks.
package telemetry

import (
	"image"
	"log/slog"
	"sync"
	"time"
)

// Notifier shows a short user-visible message for roughly d.
type Notifier interface {
	Notice(msg string, d time.Duration)
}

// Overlay receives one presentation update per tick.
type Overlay interface {
	Hide()
	Show(box image.Rectangle, confidence float64)
}

// LogNotifier writes notices to a structured logger at warn level.
type LogNotifier struct{ Logger *slog.Logger }

func (n LogNotifier) Notice(msg string, d time.Duration) {
	if n.Logger == nil {
		return
	}
	n.Logger.Warn("notice", "message", msg, "duration", d)
}

// Once forwards at most one notice per key until Reset is called for that key.
type Once struct {
	Next Notifier

	mu    sync.Mutex
	shown map[string]bool
}

// NoticeOnce shows msg unless a notice with the same key was already shown.
// It reports whether the notice was forwarded.
func (o *Once) NoticeOnce(key, msg string, d time.Duration) bool {
	o.mu.Lock()
	if o.shown == nil {
		o.shown = make(map[string]bool)
	}
	if o.shown[key] {
		o.mu.Unlock()
		return false
	}
	o.shown[key] = true
	o.mu.Unlock()
	if o.Next != nil {
		o.Next.Notice(msg, d)
	}
	return true
}

// Reset allows the notice for key to be shown again.
func (o *Once) Reset(key string) {
	o.mu.Lock()
	delete(o.shown, key)
	o.mu.Unlock()
}

// LogOverlay logs overlay transitions. Repeated hides are collapsed and shows
// are throttled to one log line per Interval.
type LogOverlay struct {
	Logger   *slog.Logger
	Interval time.Duration

	visible  bool
	lastShow time.Time
}

func (o *LogOverlay) Hide() {
	if !o.visible {
		return
	}
	o.visible = false
	if o.Logger != nil {
		o.Logger.Debug("overlay.hide")
	}
}

func (o *LogOverlay) Show(box image.Rectangle, confidence float64) {
	o.visible = true
	now := time.Now()
	if o.Interval > 0 && now.Sub(o.lastShow) < o.Interval {
		return
	}
	o.lastShow = now
	if o.Logger != nil {
		o.Logger.Debug("overlay.show", "box", box.String(), "confidence", confidence)
	}
}

// Visible reports whether the last update was a Show.
func (o *LogOverlay) Visible() bool { return o.visible }
