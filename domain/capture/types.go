package capture

import (
	"errors"
	"image"
	"time"
)

var (
	// ErrUnsupported reports that hardware duplication cannot work on this
	// system. It disables the duplication strategy for the rest of the process.
	ErrUnsupported = errors.New("capture: desktop duplication unsupported")
	// ErrNoOutput reports that no duplication output matches the display.
	ErrNoOutput = errors.New("capture: no matching display output")
	// ErrRegionSize reports an empty capture region.
	ErrRegionSize = errors.New("capture: empty region")
)

// Layout is the byte order of one 4-byte pixel in Frame.Pix.
type Layout int

const (
	LayoutBGRA Layout = iota
	LayoutRGBA
)

// Frame is an owned pixel buffer for one capture region. Pix is tightly packed
// rows of Stride bytes (4 bytes per pixel).
type Frame struct {
	Pix        []byte
	Stride     int
	Region     image.Rectangle // absolute screen coordinates
	Layout     Layout
	CapturedAt time.Time
	Sequence   uint64
	pooled     bool
}

// NewFrame allocates a frame sized to region.
func NewFrame(region image.Rectangle, layout Layout) *Frame {
	w, h := region.Dx(), region.Dy()
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Frame{Pix: make([]byte, w*h*4), Stride: w * 4, Region: region, Layout: layout}
}

func (f *Frame) Width() int  { return f.Region.Dx() }
func (f *Frame) Height() int { return f.Region.Dy() }

// Clear paints the whole frame opaque black.
func (f *Frame) Clear() {
	for i := 0; i+3 < len(f.Pix); i += 4 {
		f.Pix[i+0] = 0
		f.Pix[i+1] = 0
		f.Pix[i+2] = 0
		f.Pix[i+3] = 0xFF
	}
}

// CopyFrom copies pixels and metadata from src. Both frames must have the
// same dimensions.
func (f *Frame) CopyFrom(src *Frame) {
	copy(f.Pix, src.Pix)
	f.Stride = src.Stride
	f.Region = src.Region
	f.Layout = src.Layout
	f.CapturedAt = src.CapturedAt
	f.Sequence = src.Sequence
}

// RGBA converts the frame into a standalone *image.RGBA.
func (f *Frame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width(), f.Height()))
	for y := 0; y < f.Height(); y++ {
		src := f.Pix[y*f.Stride : y*f.Stride+f.Width()*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width()*4]
		if f.Layout == LayoutRGBA {
			copy(dst, src)
			continue
		}
		for i := 0; i < len(src); i += 4 {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = 0xFF
		}
	}
	return img
}

// Region returns the square of side size centered on center.
func Region(center image.Point, size int) image.Rectangle {
	min := image.Pt(center.X-size/2, center.Y-size/2)
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(size, size))}
}

// Stats summarises capture behaviour for instrumentation.
type Stats struct {
	Captures   uint64
	CacheHits  uint64
	Misses     uint64
	Failures   uint64
	Rebuilds   uint64
	AvgCapture time.Duration
	Method     string
	Disabled   bool
}
