package capture

import (
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/pixel-aim-go/config"
	"github.com/soocke/pixel-aim-go/domain/display"
	"github.com/soocke/pixel-aim-go/domain/telemetry"
)

const noticeDuration = 6 * time.Second

// Params are the per-tick capture settings taken from the configuration snapshot.
type Params struct {
	Method       config.CaptureMethod
	Display      display.Display
	CacheTimeout time.Duration
	MaxFailures  int
}

// ParamsFrom builds capture params from a configuration snapshot.
func ParamsFrom(c *config.Config, d display.Display) Params {
	return Params{
		Method:       c.CaptureMethod,
		Display:      d,
		CacheTimeout: c.CacheTimeout.Std(),
		MaxFailures:  c.MaxConsecutiveFailures,
	}
}

// Source captures a screen region with the configured strategy, falling back
// to the blit strategy when hardware duplication is unsupported. Capture is
// called from a single worker; NotifyDisplayChanged may be called from any
// goroutine and only marks the session for rebuild.
type Source struct {
	mu             sync.Mutex // guards the duplication session and rebuildPending
	rebuildPending bool
	active         config.CaptureMethod
	activeSet      bool
	disabled       bool
	dup            *duplicationStrategy
	blit           *blitStrategy
	notices        *telemetry.Once
	logger         *slog.Logger

	captures     atomic.Uint64
	hits         atomic.Uint64
	misses       atomic.Uint64
	failures     atomic.Uint64
	rebuilds     atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
}

// NewSource constructs a frame source. dup may be nil when the platform has no
// duplication backend; notifier receives the one-time fallback notice.
func NewSource(dup Duplicator, blitter Blitter, notifier telemetry.Notifier, logger *slog.Logger) *Source {
	return newSource(dup, blitter, notifier, logger, time.Now)
}

func newSource(dup Duplicator, blitter Blitter, notifier telemetry.Notifier, logger *slog.Logger, now func() time.Time) *Source {
	s := &Source{
		dup:     newDuplicationStrategy(dup, now, logger),
		blit:    &blitStrategy{b: blitter, now: now},
		notices: &telemetry.Once{Next: notifier},
		logger:  logger,
	}
	s.dup.hits = &s.hits
	return s
}

// NotifyDisplayChanged marks the duplication session for rebuild on the next
// capture. It never touches the session itself.
func (s *Source) NotifyDisplayChanged() {
	s.mu.Lock()
	s.rebuildPending = true
	s.mu.Unlock()
}

// RebuildPending reports whether a rebuild is scheduled for the next capture.
func (s *Source) RebuildPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildPending
}

// Disabled reports whether hardware duplication was permanently disabled.
func (s *Source) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

// Capture returns a frame for region or nil when the duplication strategy has
// no fresh or cached frame. Errors are only returned by the blit strategy.
// Frames must be handed back with Release after use.
func (s *Source) Capture(region image.Rectangle, p Params) (*Frame, error) {
	if region.Empty() {
		return nil, ErrRegionSize
	}
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.MaxFailures > 0 {
		s.dup.maxFailures = p.MaxFailures
	}
	if p.CacheTimeout > 0 {
		s.dup.cacheTimeout = p.CacheTimeout
	}
	method := p.Method
	if method == config.CaptureDuplication && s.disabled {
		method = config.CaptureBlit
	}
	s.switchTo(method)

	var (
		f   *Frame
		err error
	)
	if s.active == config.CaptureDuplication {
		f, err = s.captureDuplication(region, p.Display)
	} else {
		f, err = s.blit.capture(region)
	}
	switch {
	case err != nil:
		s.failures.Add(1)
		return nil, err
	case f == nil:
		s.misses.Add(1)
		return nil, nil
	}
	s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)
	f.Sequence = s.sequence.Add(1)
	return f, nil
}

// switchTo disposes of the resources of the previously active strategy.
func (s *Source) switchTo(method config.CaptureMethod) {
	if s.activeSet && s.active == method {
		return
	}
	if s.activeSet {
		switch s.active {
		case config.CaptureDuplication:
			s.dup.close()
		case config.CaptureBlit:
			if err := s.blit.close(); err != nil && s.logger != nil {
				s.logger.Error("blit close", "error", err)
			}
		}
		if s.logger != nil {
			s.logger.Info("capture method switched", "from", s.active.String(), "to", method.String())
		}
	}
	s.active, s.activeSet = method, true
}

func (s *Source) captureDuplication(region image.Rectangle, d display.Display) (*Frame, error) {
	if s.rebuildPending || s.dup.stale(d) {
		if s.dup.session != nil || s.rebuildPending {
			s.rebuilds.Add(1)
		}
		if err := s.dup.open(d); err != nil {
			if errors.Is(err, ErrUnsupported) {
				s.disableDuplication(err)
				return s.blit.capture(region)
			}
			s.rebuildPending = true
			s.failures.Add(1)
			if s.logger != nil {
				s.logger.Warn("duplication init failed", "error", err)
			}
			return nil, nil
		}
		s.rebuildPending = false
	}
	f, rebuild := s.dup.capture(region)
	if rebuild {
		s.rebuildPending = true
	}
	return f, nil
}

func (s *Source) disableDuplication(err error) {
	s.dup.close()
	s.disabled = true
	s.rebuildPending = false
	s.active = config.CaptureBlit
	if s.logger != nil {
		s.logger.Warn("duplication disabled, using blit", "error", err)
	}
	s.notices.NoticeOnce("duplication-unsupported",
		"Desktop duplication is not supported on this system. Switched to blit capture.", noticeDuration)
}

// Close releases all capture resources.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dup.close()
	s.activeSet = false
	return s.blit.close()
}

// Stats returns a snapshot of the capture counters.
func (s *Source) Stats() Stats {
	captures := s.captures.Load()
	total := s.captureNanos.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(total / captures)
	}
	s.mu.Lock()
	method, disabled := s.active, s.disabled
	s.mu.Unlock()
	return Stats{
		Captures:   captures,
		CacheHits:  s.hits.Load(),
		Misses:     s.misses.Load(),
		Failures:   s.failures.Load(),
		Rebuilds:   s.rebuilds.Load(),
		AvgCapture: avg,
		Method:     method.String(),
		Disabled:   disabled,
	}
}

// LogStats writes the capture counters at debug level.
func (s *Source) LogStats() {
	if s.logger == nil {
		return
	}
	st := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", st.Captures,
		"cache_hits", st.CacheHits,
		"misses", st.Misses,
		"failures", st.Failures,
		"rebuilds", st.Rebuilds,
		"avg_capture", st.AvgCapture,
		"method", st.Method,
	)
}
