// Package predict estimates where the target will be on the next tick. Every
// predictor consumes offset-adjusted absolute aim coordinates.
package predict

import (
	"time"

	"github.com/soocke/pixel-aim-go/config"
)

// Predictor ingests one observation per tick and returns the position to aim
// at. Implementations keep their own state and are not safe for concurrent use.
type Predictor interface {
	Update(x, y float64, at time.Time) (float64, float64)
	Reset()
}

// Params configure predictor construction.
type Params struct {
	// Axes selects which axes the windowed, EMA and One-Euro predictors
	// filter. The Kalman filter always corrects both.
	Axes     config.AxisMode
	EMAAlpha float64
	Window   int
}

// ParamsFrom builds predictor params from a configuration snapshot.
func ParamsFrom(c *config.Config) Params {
	return Params{Axes: c.PredictionAxes, EMAAlpha: c.EMAAlpha, Window: DefaultWindow}
}

// New returns a fresh predictor of the given kind. Unknown kinds fall back to
// the Kalman filter.
func New(kind config.PredictorKind, p Params) Predictor {
	switch kind {
	case config.PredictWindowed:
		return NewWindowed(p.Window, p.Axes)
	case config.PredictEMA:
		return NewEMA(p.EMAAlpha, p.Axes)
	case config.PredictOneEuro:
		return NewOneEuro(DefaultOneEuro(), p.Axes)
	default:
		return NewKalman(DefaultKalman())
	}
}

// Holder keeps the active predictor and replaces it, discarding all state,
// whenever the configured kind or parameters change.
type Holder struct {
	kind   config.PredictorKind
	params Params
	p      Predictor
}

// Get returns the predictor for kind and p, creating a new one on change.
func (h *Holder) Get(kind config.PredictorKind, p Params) Predictor {
	if h.p == nil || h.kind != kind || h.params != p {
		h.kind, h.params = kind, p
		h.p = New(kind, p)
	}
	return h.p
}

// Reset drops the state of the active predictor.
func (h *Holder) Reset() {
	if h.p != nil {
		h.p.Reset()
	}
}

func filterY(axes config.AxisMode) bool { return axes == config.AxesBoth }
