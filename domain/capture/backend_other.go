//go:build !windows

package capture

import (
	"fmt"

	"github.com/vova616/screenshot"
)

// NewPlatformDuplicator returns the duplication backend for this platform.
// Only Windows provides desktop duplication.
func NewPlatformDuplicator() Duplicator { return unsupportedDuplicator{} }

type unsupportedDuplicator struct{}

func (unsupportedDuplicator) Outputs() ([]OutputDesc, error) { return nil, ErrUnsupported }
func (unsupportedDuplicator) Open(OutputDesc) (DuplicationOutput, error) {
	return nil, ErrUnsupported
}

// NewPlatformBlitter returns a blitter backed by the screenshot library.
func NewPlatformBlitter() Blitter { return screenshotBlitter{} }

type screenshotBlitter struct{}

// Blit grabs dst.Region and copies it into dst. The library returns a fresh
// RGBA image per call, so the frame is tagged LayoutRGBA.
func (screenshotBlitter) Blit(dst *Frame) error {
	img, err := screenshot.CaptureRect(dst.Region)
	if err != nil {
		return err
	}
	w, h := dst.Width(), dst.Height()
	if img.Rect.Dx() < w || img.Rect.Dy() < h {
		return fmt.Errorf("short capture %v for region %v", img.Rect, dst.Region)
	}
	for y := 0; y < h; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], img.Pix[y*img.Stride:y*img.Stride+w*4])
	}
	dst.Layout = LayoutRGBA
	return nil
}

func (screenshotBlitter) Close() error { return nil }
