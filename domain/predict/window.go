package predict

import (
	"time"

	"github.com/soocke/pixel-aim-go/config"
)

// DefaultWindow is the number of frame-to-frame deltas kept.
const DefaultWindow = 5

// DeltaWindow is a fixed-capacity sliding window; pushing onto a full window
// discards the oldest value.
type DeltaWindow struct {
	vals []float64
	size int
}

func NewDeltaWindow(size int) *DeltaWindow {
	if size <= 0 {
		size = DefaultWindow
	}
	return &DeltaWindow{vals: make([]float64, 0, size), size: size}
}

func (w *DeltaWindow) Push(v float64) {
	if len(w.vals) == w.size {
		copy(w.vals, w.vals[1:])
		w.vals = w.vals[:w.size-1]
	}
	w.vals = append(w.vals, v)
}

// Values returns the retained deltas, oldest first.
func (w *DeltaWindow) Values() []float64 { return w.vals }

func (w *DeltaWindow) Len() int { return len(w.vals) }

// Mean returns the average delta, or 0 for an empty window.
func (w *DeltaWindow) Mean() float64 {
	if len(w.vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.vals {
		sum += v
	}
	return sum / float64(len(w.vals))
}

func (w *DeltaWindow) Reset() { w.vals = w.vals[:0] }

// Windowed extrapolates the next position by the average of recent deltas.
type Windowed struct {
	axes         config.AxisMode
	dx, dy       *DeltaWindow
	prevX, prevY float64
	seeded       bool
}

func NewWindowed(size int, axes config.AxisMode) *Windowed {
	return &Windowed{axes: axes, dx: NewDeltaWindow(size), dy: NewDeltaWindow(size)}
}

func (w *Windowed) Update(x, y float64, _ time.Time) (float64, float64) {
	if w.seeded {
		w.dx.Push(x - w.prevX)
		w.dy.Push(y - w.prevY)
	}
	w.prevX, w.prevY, w.seeded = x, y, true
	px, py := x+w.dx.Mean(), y
	if filterY(w.axes) {
		py = y + w.dy.Mean()
	}
	return px, py
}

func (w *Windowed) Reset() {
	w.dx.Reset()
	w.dy.Reset()
	w.seeded = false
}

// XDeltas exposes the horizontal delta window.
func (w *Windowed) XDeltas() *DeltaWindow { return w.dx }
