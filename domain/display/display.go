package display

import (
	"image"

	"github.com/soocke/pixel-aim-go/config"
)

// Display describes the monitor the aim loop is bound to, in absolute
// (virtual desktop) coordinates.
type Display struct {
	Index  int
	Name   string
	Bounds image.Rectangle
}

// Center returns the absolute center of the display.
func (d Display) Center() image.Point {
	return image.Pt(d.Bounds.Min.X+d.Bounds.Dx()/2, d.Bounds.Min.Y+d.Bounds.Dy()/2)
}

// Contains reports whether p lies on the display.
func (d Display) Contains(p image.Point) bool { return p.In(d.Bounds) }

// AspectRatio returns width/height, or 1 for a degenerate display.
func (d Display) AspectRatio() float64 {
	if d.Bounds.Dy() == 0 {
		return 1
	}
	return float64(d.Bounds.Dx()) / float64(d.Bounds.Dy())
}

// Topology exposes the current display geometry and pointer position.
type Topology interface {
	Current() (Display, error)
	// Cursor returns the absolute pointer position; ok is false when unknown.
	Cursor() (p image.Point, ok bool)
}

// ReticleCenter returns the aim point the capture region is centered on: the
// cursor when the mouse area mode is selected and the cursor lies on d,
// otherwise the display center.
func ReticleCenter(d Display, mode config.AreaMode, cursor image.Point, cursorOK bool) image.Point {
	if mode == config.AreaMouse && cursorOK && d.Contains(cursor) {
		return cursor
	}
	return d.Center()
}
