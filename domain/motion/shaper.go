// Package motion turns an aim target into a bounded relative pointer delta.
package motion

import (
	"math"
	"math/rand/v2"

	"github.com/soocke/pixel-aim-go/config"
)

// Params are the per-tick shaping settings.
type Params struct {
	Sensitivity     float64
	Jitter          float64 // maximum absolute jitter per axis
	Smoothing       bool
	SmoothingFactor float64
	Bound           float64 // symmetric clamp per axis
	Aspect          float64 // display width / height
}

// ParamsFrom builds shaping params from a configuration snapshot.
func ParamsFrom(c *config.Config, aspect float64) Params {
	return Params{
		Sensitivity:     c.Sensitivity,
		Jitter:          float64(c.Jitter),
		Smoothing:       c.MotionSmoothing,
		SmoothingFactor: c.MotionSmoothingFactor,
		Bound:           float64(c.MotionBound),
		Aspect:          aspect,
	}
}

// Vec is a 2-D vector in screen pixels.
type Vec struct{ X, Y float64 }

func (v Vec) add(o Vec) Vec       { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) scale(k float64) Vec { return Vec{v.X * k, v.Y * k} }

// CubicBezier evaluates the cubic Bézier curve p0..p3 at t.
func CubicBezier(p0, p1, p2, p3 Vec, t float64) Vec {
	u := 1 - t
	return p0.scale(u * u * u).
		add(p1.scale(3 * u * u * t)).
		add(p2.scale(3 * u * t * t)).
		add(p3.scale(t * t * t))
}

// Shaper converts target vectors into pointer deltas. It keeps the smoothing
// state across calls and is not safe for concurrent use.
type Shaper struct {
	rng      *rand.Rand
	smoothed Vec
	primed   bool
}

// NewShaper returns a shaper whose jitter is drawn from a PCG source seeded
// with seed.
func NewShaper(seed uint64) *Shaper {
	return &Shaper{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Shape returns the relative pointer delta for target, the vector from the
// display center to the aim point. The curve from the origin to target has
// control points at one and two thirds of the straight path and is evaluated
// at 1-sensitivity. The result is optionally smoothed, clamped to ±Bound,
// its vertical axis scaled by Aspect, and finally jittered.
func (s *Shaper) Shape(target Vec, p Params) (int, int) {
	end := target
	c1 := end.scale(1.0 / 3)
	c2 := end.scale(2.0 / 3)
	v := CubicBezier(Vec{}, c1, c2, end, clamp(1-p.Sensitivity, 0, 1))

	if p.Smoothing {
		if !s.primed {
			s.smoothed, s.primed = v, true
		} else {
			a := clamp(p.SmoothingFactor, 0, 1)
			s.smoothed = v.scale(a).add(s.smoothed.scale(1 - a))
		}
		v = s.smoothed
	} else {
		s.primed = false
	}

	if p.Bound > 0 {
		v.X = clamp(v.X, -p.Bound, p.Bound)
		v.Y = clamp(v.Y, -p.Bound, p.Bound)
	}
	if p.Aspect > 0 {
		v.Y *= p.Aspect
	}
	if p.Jitter > 0 {
		v.X += s.jitter(p.Jitter)
		v.Y += s.jitter(p.Jitter)
	}
	return int(math.Round(v.X)), int(math.Round(v.Y))
}

// Reset clears the smoothing state.
func (s *Shaper) Reset() { s.primed = false }

func (s *Shaper) jitter(mag float64) float64 { return (s.rng.Float64()*2 - 1) * mag }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
