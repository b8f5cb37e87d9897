//go:build !windows

package display

import (
	"fmt"
	"image"

	"github.com/vova616/screenshot"
)

// SystemTopology reports the screen bounds from the screenshot backend. The
// cursor position is not available on this platform.
type SystemTopology struct{}

func (SystemTopology) Current() (Display, error) {
	r, err := screenshot.ScreenRect()
	if err != nil {
		return Display{}, fmt.Errorf("display: screen rect: %w", err)
	}
	return Display{Index: 0, Name: "screen0", Bounds: r}, nil
}

func (SystemTopology) Cursor() (image.Point, bool) { return image.Point{}, false }
