package predict

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// KalmanConfig holds the noise terms of the constant-velocity filter.
type KalmanConfig struct {
	ProcessNoisePos  float64 // position variance added per second
	ProcessNoiseVel  float64 // velocity variance added per second
	MeasurementNoise float64 // pixel variance of one observation
	MaxDt            time.Duration
}

// DefaultKalman returns noise terms tuned for 60-200 Hz detection rates.
func DefaultKalman() KalmanConfig {
	return KalmanConfig{ProcessNoisePos: 50, ProcessNoiseVel: 2000, MeasurementNoise: 4, MaxDt: 250 * time.Millisecond}
}

// Kalman is a timestamp-aware constant-velocity filter over [x y vx vy]. It
// predicts one tick ahead using the last observed tick interval.
type Kalman struct {
	cfg  KalmanConfig
	x    *mat.VecDense
	p    *mat.Dense
	h    *mat.Dense
	r    *mat.Dense
	last time.Time
	dt   float64
	seen int
}

func NewKalman(cfg KalmanConfig) *Kalman {
	k := &Kalman{cfg: cfg}
	k.h = mat.NewDense(2, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
	})
	k.r = mat.NewDense(2, 2, []float64{
		cfg.MeasurementNoise, 0,
		0, cfg.MeasurementNoise,
	})
	k.Reset()
	return k
}

func (k *Kalman) Reset() {
	k.x = mat.NewVecDense(4, nil)
	k.p = mat.NewDense(4, 4, []float64{
		k.cfg.MeasurementNoise, 0, 0, 0,
		0, k.cfg.MeasurementNoise, 0, 0,
		0, 0, 1000, 0,
		0, 0, 0, 1000,
	})
	k.last = time.Time{}
	k.dt = 0
	k.seen = 0
}

// Update folds in the observation and returns the position predicted for the
// next tick. The first observation is returned unchanged.
func (k *Kalman) Update(x, y float64, at time.Time) (float64, float64) {
	if k.seen == 0 {
		k.x.SetVec(0, x)
		k.x.SetVec(1, y)
		k.last = at
		k.seen = 1
		return x, y
	}
	dt := at.Sub(k.last)
	if dt > k.cfg.MaxDt {
		dt = k.cfg.MaxDt
	}
	if dt <= 0 {
		dt = time.Millisecond
	}
	k.last = at
	k.dt = dt.Seconds()
	k.seen++

	k.predict(k.dt)
	k.correct(x, y)

	px := k.x.AtVec(0) + k.x.AtVec(2)*k.dt
	py := k.x.AtVec(1) + k.x.AtVec(3)*k.dt
	return px, py
}

func transition(dt float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, dt, 0,
		0, 1, 0, dt,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// predict applies x = F x and P = F P Fᵀ + Q.
func (k *Kalman) predict(dt float64) {
	f := transition(dt)
	var x mat.VecDense
	x.MulVec(f, k.x)
	k.x = &x

	var fp, fpf mat.Dense
	fp.Mul(f, k.p)
	fpf.Mul(&fp, f.T())
	q := mat.NewDiagDense(4, []float64{
		k.cfg.ProcessNoisePos * dt,
		k.cfg.ProcessNoisePos * dt,
		k.cfg.ProcessNoiseVel * dt,
		k.cfg.ProcessNoiseVel * dt,
	})
	fpf.Add(&fpf, q)
	k.p = &fpf
}

// correct applies the measurement update for z = (x, y).
func (k *Kalman) correct(x, y float64) {
	z := mat.NewVecDense(2, []float64{x, y})

	var hx, innov mat.VecDense
	hx.MulVec(k.h, k.x)
	innov.SubVec(z, &hx)

	var hp, s mat.Dense
	hp.Mul(k.h, k.p)
	s.Mul(&hp, k.h.T())
	s.Add(&s, k.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return // singular innovation covariance
	}
	var pht, gain mat.Dense
	pht.Mul(k.p, k.h.T())
	gain.Mul(&pht, &sInv)

	var dx mat.VecDense
	dx.MulVec(&gain, &innov)
	k.x.AddVec(k.x, &dx)

	var kh, ikh, p mat.Dense
	kh.Mul(&gain, k.h)
	ikh.Sub(eye4(), &kh)
	p.Mul(&ikh, k.p)
	k.p = &p
}

func eye4() *mat.DiagDense { return mat.NewDiagDense(4, []float64{1, 1, 1, 1}) }

// Velocity returns the current velocity estimate in pixels per second.
func (k *Kalman) Velocity() (float64, float64) { return k.x.AtVec(2), k.x.AtVec(3) }
