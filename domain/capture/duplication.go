package capture

import (
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/soocke/pixel-aim-go/domain/display"
)

// AcquireStatus is the outcome of a non-blocking next-frame acquisition.
type AcquireStatus int

const (
	FrameReady AcquireStatus = iota
	// FrameTimeout means no new desktop frame was presented since the last one.
	FrameTimeout
	// FrameAccessLost means the duplication handle was invalidated (mode
	// change, secure desktop, device removal).
	FrameAccessLost
)

// OutputDesc describes one duplicable display output.
type OutputDesc struct {
	Index  int // enumeration order across all adapters
	Name   string
	Bounds image.Rectangle
}

// Duplicator enumerates display outputs and opens duplication handles on them.
type Duplicator interface {
	Outputs() ([]OutputDesc, error)
	Open(OutputDesc) (DuplicationOutput, error)
}

// DuplicationOutput is an exclusive duplication handle bound to one output.
// CopyRect is only valid between a FrameReady acquisition and ReleaseFrame.
type DuplicationOutput interface {
	AcquireNextFrame(timeout time.Duration) (AcquireStatus, error)
	// CopyRect copies src (output-relative coordinates) into dst with its
	// top-left corner at the frame-relative point at.
	CopyRect(src image.Rectangle, dst *Frame, at image.Point) error
	ReleaseFrame() error
	Close() error
}

// matchOutput picks the output whose bounds equal the display bounds, falling
// back to the output at the display's enumeration index.
func matchOutput(outs []OutputDesc, d display.Display) (OutputDesc, bool) {
	for _, o := range outs {
		if o.Bounds == d.Bounds {
			return o, true
		}
	}
	for _, o := range outs {
		if o.Index == d.Index {
			return o, true
		}
	}
	return OutputDesc{}, false
}

// duplicationSession is the set of handles backing duplication captures for
// one display. A session is either fully open or absent.
type duplicationSession struct {
	out     DuplicationOutput
	desc    OutputDesc
	display display.Display
}

type frameCache struct {
	frame *Frame
	at    time.Time
}

type duplicationStrategy struct {
	dup          Duplicator
	session      *duplicationSession
	cache        frameCache
	failures     int
	maxFailures  int
	cacheTimeout time.Duration
	now          func() time.Time
	hits         *atomic.Uint64
	logger       *slog.Logger
}

func newDuplicationStrategy(dup Duplicator, now func() time.Time, logger *slog.Logger) *duplicationStrategy {
	return &duplicationStrategy{dup: dup, now: now, logger: logger, maxFailures: 5, cacheTimeout: 15 * time.Millisecond}
}

// stale reports whether the session must be rebuilt before capturing on d.
func (s *duplicationStrategy) stale(d display.Display) bool {
	return s.session == nil || s.session.display != d
}

// open tears down any existing session and builds a new one against d.
func (s *duplicationStrategy) open(d display.Display) error {
	s.close()
	if s.dup == nil {
		return ErrUnsupported
	}
	outs, err := s.dup.Outputs()
	if err != nil {
		return fmt.Errorf("capture: enumerate outputs: %w", err)
	}
	desc, ok := matchOutput(outs, d)
	if !ok {
		return fmt.Errorf("%w: display %d %v", ErrNoOutput, d.Index, d.Bounds)
	}
	out, err := s.dup.Open(desc)
	if err != nil {
		return fmt.Errorf("capture: duplicate output %q: %w", desc.Name, err)
	}
	s.session = &duplicationSession{out: out, desc: desc, display: d}
	s.failures = 0
	if s.logger != nil {
		s.logger.Info("duplication session opened", "output", desc.Name, "index", desc.Index, "bounds", desc.Bounds.String())
	}
	return nil
}

// close releases the session and the cache entry.
func (s *duplicationStrategy) close() {
	if s.session != nil {
		_ = s.session.out.ReleaseFrame()
		if err := s.session.out.Close(); err != nil && s.logger != nil {
			s.logger.Error("duplication close", "error", err)
		}
		s.session = nil
	}
	s.cache = frameCache{}
}

// capture grabs the region from the open session. It returns the frame to
// serve (possibly a cache copy or nil) and whether the failure threshold was
// reached and the session must be rebuilt.
func (s *duplicationStrategy) capture(region image.Rectangle) (*Frame, bool) {
	out := s.session.out
	status, err := out.AcquireNextFrame(0)
	switch {
	case err != nil:
		if s.logger != nil {
			s.logger.Debug("duplication acquire", "error", err)
		}
		return s.fail(region)
	case status == FrameTimeout:
		s.failures = 0
		return s.cached(region), false
	case status == FrameAccessLost:
		return s.fail(region)
	}
	defer func() { _ = out.ReleaseFrame() }()

	f := acquireFrame(region, LayoutBGRA)
	f.Clear()
	bounds := s.session.display.Bounds
	rel := region.Sub(bounds.Min)
	visible := rel.Intersect(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	if !visible.Empty() {
		if err := out.CopyRect(visible, f, visible.Min.Sub(rel.Min)); err != nil {
			Release(f)
			if s.logger != nil {
				s.logger.Debug("duplication copy", "error", err)
			}
			return s.fail(region)
		}
	}
	s.failures = 0
	f.CapturedAt = s.now()
	s.store(f)
	return f, false
}

func (s *duplicationStrategy) fail(region image.Rectangle) (*Frame, bool) {
	s.failures++
	return s.cached(region), s.failures >= s.maxFailures
}

func (s *duplicationStrategy) store(f *Frame) {
	if s.cache.frame == nil || s.cache.frame.Region.Size() != f.Region.Size() {
		s.cache.frame = NewFrame(f.Region, f.Layout)
	}
	s.cache.frame.CopyFrom(f)
	s.cache.at = f.CapturedAt
}

// cached returns a copy of the cached frame when it was captured for exactly
// this region and is younger than the cache timeout.
func (s *duplicationStrategy) cached(region image.Rectangle) *Frame {
	c := s.cache.frame
	if c == nil || c.Region != region {
		return nil
	}
	if s.now().Sub(s.cache.at) > s.cacheTimeout {
		return nil
	}
	f := acquireFrame(region, c.Layout)
	f.CopyFrom(c)
	if s.hits != nil {
		s.hits.Add(1)
	}
	return f
}
