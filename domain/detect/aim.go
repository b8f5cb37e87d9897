package detect

import (
	"image"

	"github.com/soocke/pixel-aim-go/config"
)

// AimParams map a selected box to an absolute aim point.
type AimParams struct {
	Size    int
	Display image.Rectangle
	Region  image.Rectangle

	XOffset, YOffset               float64
	XPercentAdjust, YPercentAdjust bool
	XOffsetPercent, YOffsetPercent float64
	Alignment                      config.Alignment
}

// AimParamsFrom builds aim parameters from a configuration snapshot.
func AimParamsFrom(c *config.Config, displayBounds, region image.Rectangle) AimParams {
	return AimParams{
		Size:           c.DetectionSize,
		Display:        displayBounds,
		Region:         region,
		XOffset:        c.XOffset,
		YOffset:        c.YOffset,
		XPercentAdjust: c.XPercentAdjust,
		YPercentAdjust: c.YPercentAdjust,
		XOffsetPercent: c.XOffsetPercent,
		YOffsetPercent: c.YOffsetPercent,
		Alignment:      c.Alignment,
	}
}

// Scale returns display size divided by the detection input size per axis.
func (p AimParams) Scale() (float64, float64) {
	if p.Size <= 0 {
		return 1, 1
	}
	return float64(p.Display.Dx()) / float64(p.Size), float64(p.Display.Dy()) / float64(p.Size)
}

// AimPoint returns the absolute screen point to aim at for box b. The point
// inside the box is chosen by the percentage adjustment when enabled, else by
// horizontal center and vertical alignment. Its offset from the detection
// input center is scaled to display resolution and added to the capture
// region center, then the pixel offsets are applied. The horizontal pixel
// offset does not apply in percentage mode.
func AimPoint(b Box, p AimParams) (float64, float64) {
	var px, py float64
	xOff, yOff := p.XOffset, p.YOffset
	if p.XPercentAdjust {
		px = b.X + b.W*p.XOffsetPercent/100
		xOff = 0
	} else {
		px = b.X + b.W/2
	}
	if p.YPercentAdjust {
		py = b.Y + b.H - b.H*p.YOffsetPercent/100
	} else {
		switch p.Alignment {
		case config.AlignTop:
			py = b.Y
		case config.AlignBottom:
			py = b.Y + b.H
		default:
			py = b.Y + b.H/2
		}
	}
	sx, sy := p.Scale()
	half := float64(p.Size) / 2
	cx := float64(p.Region.Min.X) + half
	cy := float64(p.Region.Min.Y) + half
	return cx + (px-half)*sx + xOff, cy + (py-half)*sy + yOff
}
