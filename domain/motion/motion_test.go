package motion

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func base() Params { return Params{Bound: 150, Aspect: 1} }

func TestCubicBezier_Endpoints(t *testing.T) {
	p3 := Vec{90, -30}
	assert.Equal(t, Vec{}, CubicBezier(Vec{}, Vec{30, -10}, Vec{60, -20}, p3, 0))
	assert.Equal(t, p3, CubicBezier(Vec{}, Vec{30, -10}, Vec{60, -20}, p3, 1))
}

func TestShape_ZeroSensitivityReachesEndpoint(t *testing.T) {
	s := NewShaper(1)
	p := base()
	dx, dy := s.Shape(Vec{90, -30}, p)
	assert.Equal(t, 90, dx)
	assert.Equal(t, -30, dy)

	dx, dy = s.Shape(Vec{400, -900}, p)
	assert.Equal(t, 150, dx)
	assert.Equal(t, -150, dy)
}

func TestShape_SensitivityDampens(t *testing.T) {
	s := NewShaper(1)
	p := base()
	p.Sensitivity = 0.75
	dx, dy := s.Shape(Vec{100, 40}, p)
	assert.Equal(t, 25, dx)
	assert.Equal(t, 10, dy)

	p.Sensitivity = 1
	dx, dy = s.Shape(Vec{100, 40}, p)
	assert.Zero(t, dx)
	assert.Zero(t, dy)
}

func TestShape_AspectAppliedAfterClamp(t *testing.T) {
	s := NewShaper(1)
	p := base()
	p.Aspect = 16.0 / 9
	_, dy := s.Shape(Vec{0, 500}, p)
	assert.Equal(t, 267, dy) // 150 * 16/9
}

func TestShape_JitterBounded(t *testing.T) {
	s := NewShaper(42)
	p := base()
	p.Jitter = 3
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		dx, dy := s.Shape(Vec{10, 10}, p)
		assert.InDelta(t, 10, dx, 3)
		assert.InDelta(t, 10, dy, 3)
		seen[dx] = true
	}
	assert.Greater(t, len(seen), 1)

	a, b := NewShaper(7), NewShaper(7)
	for i := 0; i < 10; i++ {
		ax, ay := a.Shape(Vec{10, 10}, p)
		bx, by := b.Shape(Vec{10, 10}, p)
		assert.Equal(t, ax, bx)
		assert.Equal(t, ay, by)
	}
}

func TestShape_Smoothing(t *testing.T) {
	s := NewShaper(1)
	p := base()
	p.Smoothing, p.SmoothingFactor = true, 0.5
	dx, _ := s.Shape(Vec{100, 0}, p)
	assert.Equal(t, 100, dx)
	dx, _ = s.Shape(Vec{0, 0}, p)
	assert.Equal(t, 50, dx)
	dx, _ = s.Shape(Vec{0, 0}, p)
	assert.Equal(t, 25, dx)

	s.Reset()
	dx, _ = s.Shape(Vec{0, 0}, p)
	assert.Equal(t, 0, dx)
}

type recordingButton struct {
	mu      sync.Mutex
	presses int
	release int
	gate    chan struct{}
}

func (b *recordingButton) Press() error {
	b.mu.Lock()
	b.presses++
	b.mu.Unlock()
	if b.gate != nil {
		<-b.gate
	}
	return nil
}

func (b *recordingButton) Release() error {
	b.mu.Lock()
	b.release++
	b.mu.Unlock()
	return nil
}

func (b *recordingButton) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presses, b.release
}

func TestAutoTrigger_RespectsDelay(t *testing.T) {
	btn := &recordingButton{}
	tr := NewAutoTrigger(btn, nil)
	clk := time.Unix(100, 0)
	tr.now = func() time.Time { return clk }
	tr.sleep = func(time.Duration) {}

	require.True(t, tr.Fire(100*time.Millisecond))
	tr.Wait()
	clk = clk.Add(50 * time.Millisecond)
	assert.False(t, tr.Fire(100*time.Millisecond))
	clk = clk.Add(60 * time.Millisecond)
	assert.True(t, tr.Fire(100*time.Millisecond))
	tr.Wait()

	p, r := btn.counts()
	assert.Equal(t, 2, p)
	assert.Equal(t, 2, r)
}

func TestAutoTrigger_NotReentrant(t *testing.T) {
	btn := &recordingButton{gate: make(chan struct{})}
	tr := NewAutoTrigger(btn, nil)
	tr.sleep = func(time.Duration) {}

	require.True(t, tr.Fire(0))
	assert.Eventually(t, func() bool { p, _ := btn.counts(); return p == 1 }, time.Second, time.Millisecond)
	assert.True(t, tr.Busy())
	assert.False(t, tr.Fire(0))

	close(btn.gate)
	tr.Wait()
	assert.False(t, tr.Busy())
	p, r := btn.counts()
	assert.Equal(t, 1, p)
	assert.Equal(t, 1, r)
}
