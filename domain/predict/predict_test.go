package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-aim-go/config"
)

var t0 = time.Unix(0, 0)

func tick(i int) time.Time { return t0.Add(time.Duration(i) * 10 * time.Millisecond) }

func TestDeltaWindow_KeepsLastFive(t *testing.T) {
	w := NewDeltaWindow(DefaultWindow)
	for i, d := range []float64{1, 2, 3, 4, 5, 6} {
		w.Push(d)
		assert.LessOrEqual(t, w.Len(), 5, "push %d", i)
	}
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, w.Values())
	assert.Equal(t, 4.0, w.Mean())
}

func TestWindowed_ExtrapolatesXOnly(t *testing.T) {
	w := NewWindowed(DefaultWindow, config.AxesX)
	x := 0.0
	var px, py float64
	for i, d := range []float64{0, 1, 2, 3, 4, 5, 6} {
		x += d
		px, py = w.Update(x, 50+float64(i), tick(i))
	}
	assert.Equal(t, []float64{2, 3, 4, 5, 6}, w.XDeltas().Values())
	assert.Equal(t, x+4, px)
	assert.Equal(t, 56.0, py, "y passes through")

	w.Reset()
	px, py = w.Update(10, 20, tick(0))
	assert.Equal(t, 10.0, px)
	assert.Equal(t, 20.0, py)
}

func TestWindowed_BothAxes(t *testing.T) {
	w := NewWindowed(DefaultWindow, config.AxesBoth)
	w.Update(0, 0, tick(0))
	px, py := w.Update(2, 4, tick(1))
	assert.Equal(t, 4.0, px)
	assert.Equal(t, 8.0, py)
}

func TestEMA(t *testing.T) {
	e := NewEMA(0.5, config.AxesX)
	x, y := e.Update(0, 0, tick(0))
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)
	x, y = e.Update(10, 10, tick(1))
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 10.0, y, "y passes through")

	b := NewEMA(0.5, config.AxesBoth)
	b.Update(0, 0, tick(0))
	_, y = b.Update(10, 10, tick(1))
	assert.Equal(t, 5.0, y)

	assert.Equal(t, 0.5, NewEMA(7, config.AxesX).alpha)
}

func TestKalman_FirstObservationPassesThrough(t *testing.T) {
	k := NewKalman(DefaultKalman())
	x, y := k.Update(123, 456, tick(0))
	assert.Equal(t, 123.0, x)
	assert.Equal(t, 456.0, y)
}

func TestKalman_TracksConstantVelocity(t *testing.T) {
	k := NewKalman(DefaultKalman())
	var px, py float64
	for i := 0; i < 200; i++ {
		sec := tick(i).Sub(t0).Seconds()
		px, py = k.Update(100+300*sec, 200-120*sec, tick(i))
	}
	next := tick(200).Sub(t0).Seconds()
	assert.InDelta(t, 100+300*next, px, 2.0)
	assert.InDelta(t, 200-120*next, py, 2.0)
	vx, vy := k.Velocity()
	assert.InDelta(t, 300, vx, 10)
	assert.InDelta(t, -120, vy, 10)

	k.Reset()
	x, _ := k.Update(5, 5, tick(300))
	assert.Equal(t, 5.0, x)
}

func TestOneEuro(t *testing.T) {
	o := NewOneEuro(DefaultOneEuro(), config.AxesX)
	x, y := o.Update(100, 7, tick(0))
	assert.Equal(t, 100.0, x)
	assert.Equal(t, 7.0, y)
	for i := 1; i < 10; i++ {
		x, _ = o.Update(100, 7, tick(i))
	}
	assert.InDelta(t, 100, x, 1e-9)

	x, y = o.Update(200, 9, tick(10))
	assert.Greater(t, x, 100.0)
	assert.Less(t, x, 200.0)
	assert.Equal(t, 9.0, y)
}

func TestHolder_ReplacesOnKindChange(t *testing.T) {
	var h Holder
	p := Params{Axes: config.AxesX, EMAAlpha: 0.5, Window: DefaultWindow}
	a := h.Get(config.PredictEMA, p)
	require.IsType(t, &EMA{}, a)
	a.Update(10, 10, tick(0))
	assert.Same(t, a, h.Get(config.PredictEMA, p))

	b := h.Get(config.PredictKalman, p)
	require.IsType(t, &Kalman{}, b)
	c := h.Get(config.PredictEMA, p)
	assert.NotSame(t, a, c)
	x, _ := c.Update(20, 20, tick(1))
	assert.Equal(t, 20.0, x, "state is not carried across kinds")

	require.IsType(t, &Windowed{}, h.Get(config.PredictWindowed, p))
	require.IsType(t, &OneEuro{}, h.Get(config.PredictOneEuro, p))
}
