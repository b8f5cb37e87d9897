package predict

import (
	"time"

	"github.com/soocke/pixel-aim-go/config"
)

// EMA keeps an exponentially weighted position estimate per axis.
type EMA struct {
	alpha  float64
	axes   config.AxisMode
	ex, ey float64
	seeded bool
}

// NewEMA returns an EMA filter; alpha outside (0,1] is replaced by 0.5.
func NewEMA(alpha float64, axes config.AxisMode) *EMA {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.5
	}
	return &EMA{alpha: alpha, axes: axes}
}

func (e *EMA) Update(x, y float64, _ time.Time) (float64, float64) {
	if !e.seeded {
		e.ex, e.ey, e.seeded = x, y, true
	} else {
		e.ex = e.alpha*x + (1-e.alpha)*e.ex
		e.ey = e.alpha*y + (1-e.alpha)*e.ey
	}
	if filterY(e.axes) {
		return e.ex, e.ey
	}
	return e.ex, y
}

func (e *EMA) Reset() { e.seeded = false }
