package predict

import (
	"math"
	"time"

	"github.com/soocke/pixel-aim-go/config"
)

// OneEuroConfig holds the One-Euro filter parameters (Casiez et al.).
type OneEuroConfig struct {
	Freq      float64 // initial sampling rate estimate in Hz
	MinCutoff float64
	Beta      float64
	DCutoff   float64
}

func DefaultOneEuro() OneEuroConfig {
	return OneEuroConfig{Freq: 120, MinCutoff: 1.0, Beta: 0.0, DCutoff: 1.0}
}

type lowPass struct {
	s, raw float64
	ok     bool
}

func (l *lowPass) filter(v, alpha float64) float64 {
	if !l.ok {
		l.s, l.ok = v, true
	} else {
		l.s = alpha*v + (1-alpha)*l.s
	}
	l.raw = v
	return l.s
}

func smoothing(freq, cutoff float64) float64 {
	tau := 1 / (2 * math.Pi * cutoff)
	return 1 / (1 + tau*freq)
}

// oneEuroAxis is the adaptive low-pass filter for one coordinate.
type oneEuroAxis struct {
	cfg   OneEuroConfig
	x, dx lowPass
}

func (a *oneEuroAxis) filter(v, freq float64) float64 {
	var d float64
	if a.x.ok {
		d = (v - a.x.raw) * freq
	}
	ed := a.dx.filter(d, smoothing(freq, a.cfg.DCutoff))
	cutoff := a.cfg.MinCutoff + a.cfg.Beta*math.Abs(ed)
	return a.x.filter(v, smoothing(freq, cutoff))
}

// OneEuro smooths jitter at low speeds and follows quickly at high speeds.
type OneEuro struct {
	cfg  OneEuroConfig
	axes config.AxisMode
	ax   oneEuroAxis
	ay   oneEuroAxis
	freq float64
	last time.Time
}

func NewOneEuro(cfg OneEuroConfig, axes config.AxisMode) *OneEuro {
	if cfg.Freq <= 0 {
		cfg.Freq = 120
	}
	if cfg.MinCutoff <= 0 {
		cfg.MinCutoff = 1
	}
	if cfg.DCutoff <= 0 {
		cfg.DCutoff = 1
	}
	o := &OneEuro{cfg: cfg, axes: axes}
	o.Reset()
	return o
}

func (o *OneEuro) Update(x, y float64, at time.Time) (float64, float64) {
	if !o.last.IsZero() {
		if dt := at.Sub(o.last).Seconds(); dt > 0 {
			o.freq = 1 / dt
		}
	}
	o.last = at
	fx := o.ax.filter(x, o.freq)
	if !filterY(o.axes) {
		return fx, y
	}
	return fx, o.ay.filter(y, o.freq)
}

func (o *OneEuro) Reset() {
	o.ax = oneEuroAxis{cfg: o.cfg}
	o.ay = oneEuroAxis{cfg: o.cfg}
	o.freq = o.cfg.Freq
	o.last = time.Time{}
}
