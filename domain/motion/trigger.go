package motion

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Button is the part of the pointer sink the trigger drives.
type Button interface {
	Press() error
	Release() error
}

// holdTime is how long the trigger keeps the button down.
const holdTime = 20 * time.Millisecond

// AutoTrigger clicks at most once per delay and never re-entrantly. Clicks run
// on their own goroutine so the aim loop is not held for the button hold time.
type AutoTrigger struct {
	btn    Button
	logger *slog.Logger
	now    func() time.Time
	sleep  func(time.Duration)

	busy atomic.Bool
	mu   sync.Mutex
	last time.Time
	wg   sync.WaitGroup
}

func NewAutoTrigger(btn Button, logger *slog.Logger) *AutoTrigger {
	return &AutoTrigger{btn: btn, logger: logger, now: time.Now, sleep: time.Sleep}
}

// Fire starts a click unless one is in progress or the previous click started
// less than delay ago. It reports whether a click was started.
func (a *AutoTrigger) Fire(delay time.Duration) bool {
	if a.btn == nil || !a.busy.CompareAndSwap(false, true) {
		return false
	}
	a.mu.Lock()
	now := a.now()
	if !a.last.IsZero() && now.Sub(a.last) < delay {
		a.mu.Unlock()
		a.busy.Store(false)
		return false
	}
	a.last = now
	a.mu.Unlock()

	a.wg.Add(1)
	go a.click()
	return true
}

func (a *AutoTrigger) click() {
	defer a.wg.Done()
	defer a.busy.Store(false)
	defer func() {
		if r := recover(); r != nil && a.logger != nil {
			a.logger.Error("trigger panic", "panic", r)
		}
	}()
	if err := a.btn.Press(); err != nil {
		if a.logger != nil {
			a.logger.Error("trigger press", "error", err)
		}
		return
	}
	a.sleep(holdTime)
	if err := a.btn.Release(); err != nil && a.logger != nil {
		a.logger.Error("trigger release", "error", err)
	}
}

// Busy reports whether a click is in progress.
func (a *AutoTrigger) Busy() bool { return a.busy.Load() }

// Wait blocks until any click in progress has finished.
func (a *AutoTrigger) Wait() { a.wg.Wait() }
