package capture

import (
	"fmt"
	"image"
	"time"
)

// Blitter copies the region dst.Region from the desktop into dst.Pix and sets
// dst.Layout. Implementations may keep OS resources sized to the last region.
type Blitter interface {
	Blit(dst *Frame) error
	Close() error
}

// blitStrategy owns one reusable buffer sized to the region. The frame it
// returns is overwritten by the next capture.
type blitStrategy struct {
	b   Blitter
	buf *Frame
	now func() time.Time
}

func (s *blitStrategy) capture(region image.Rectangle) (*Frame, error) {
	if s.b == nil {
		return nil, fmt.Errorf("capture: no blit backend")
	}
	if s.buf == nil || s.buf.Region.Size() != region.Size() {
		s.buf = NewFrame(region, LayoutBGRA)
	}
	s.buf.Region = region
	if err := s.b.Blit(s.buf); err != nil {
		return nil, fmt.Errorf("capture: blit %v: %w", region, err)
	}
	s.buf.CapturedAt = s.now()
	return s.buf, nil
}

func (s *blitStrategy) close() error {
	s.buf = nil
	if s.b == nil {
		return nil
	}
	return s.b.Close()
}
