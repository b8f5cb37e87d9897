package capture

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-aim-go/config"
	"github.com/soocke/pixel-aim-go/domain/display"
)

// fakeOutput serves a synthetic desktop where output-relative pixel (x,y) is
// B=x G=y R=7 A=255.
type fakeOutput struct {
	bounds   image.Rectangle
	statuses []AcquireStatus
	closed   bool
	released int
}

func (o *fakeOutput) AcquireNextFrame(time.Duration) (AcquireStatus, error) {
	if len(o.statuses) == 0 {
		return FrameReady, nil
	}
	st := o.statuses[0]
	o.statuses = o.statuses[1:]
	return st, nil
}

func (o *fakeOutput) CopyRect(src image.Rectangle, dst *Frame, at image.Point) error {
	for y := src.Min.Y; y < src.Max.Y; y++ {
		for x := src.Min.X; x < src.Max.X; x++ {
			off := (at.Y+y-src.Min.Y)*dst.Stride + (at.X+x-src.Min.X)*4
			dst.Pix[off+0] = byte(x)
			dst.Pix[off+1] = byte(y)
			dst.Pix[off+2] = 7
			dst.Pix[off+3] = 255
		}
	}
	return nil
}

func (o *fakeOutput) ReleaseFrame() error { o.released++; return nil }
func (o *fakeOutput) Close() error        { o.closed = true; return nil }

type fakeDuplicator struct {
	outs    []OutputDesc
	listErr error
	opened  []*fakeOutput
	next    []AcquireStatus // statuses handed to the next opened output
}

func (d *fakeDuplicator) Outputs() ([]OutputDesc, error) { return d.outs, d.listErr }

func (d *fakeDuplicator) Open(desc OutputDesc) (DuplicationOutput, error) {
	o := &fakeOutput{bounds: desc.Bounds, statuses: d.next}
	d.next = nil
	d.opened = append(d.opened, o)
	return o, nil
}

func (d *fakeDuplicator) last() *fakeOutput { return d.opened[len(d.opened)-1] }

type fakeBlitter struct {
	blits  int
	closed int
}

func (b *fakeBlitter) Blit(dst *Frame) error {
	b.blits++
	for i := range dst.Pix {
		dst.Pix[i] = 0x42
	}
	dst.Layout = LayoutBGRA
	return nil
}

func (b *fakeBlitter) Close() error { b.closed++; return nil }

type countingNotifier struct{ msgs []string }

func (n *countingNotifier) Notice(msg string, _ time.Duration) { n.msgs = append(n.msgs, msg) }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

var testDisplay = display.Display{Index: 0, Name: "primary", Bounds: image.Rect(100, 100, 200, 200)}

func newTestSource(dup Duplicator, b Blitter, n *countingNotifier) (*Source, *clock) {
	c := &clock{t: time.Unix(1000, 0)}
	return newSource(dup, b, n, nil, c.now), c
}

func dupParams() Params {
	return Params{Method: config.CaptureDuplication, Display: testDisplay, CacheTimeout: 15 * time.Millisecond, MaxFailures: 3}
}

func pixel(f *Frame, x, y int) [4]byte {
	off := y*f.Stride + x*4
	return [4]byte{f.Pix[off], f.Pix[off+1], f.Pix[off+2], f.Pix[off+3]}
}

func TestCapture_TranslatesOffsetAndBlacksOutOfBounds(t *testing.T) {
	dup := &fakeDuplicator{outs: []OutputDesc{{Index: 0, Name: "primary", Bounds: testDisplay.Bounds}}}
	s, _ := newTestSource(dup, &fakeBlitter{}, &countingNotifier{})

	region := image.Rect(180, 180, 220, 220)
	f, err := s.Capture(region, dupParams())
	require.NoError(t, err)
	require.NotNil(t, f)
	defer Release(f)

	assert.Equal(t, region, f.Region)
	assert.Equal(t, [4]byte{80, 80, 7, 255}, pixel(f, 0, 0))
	assert.Equal(t, [4]byte{99, 99, 7, 255}, pixel(f, 19, 19))
	assert.Equal(t, [4]byte{0, 0, 0, 255}, pixel(f, 20, 20))
	assert.Equal(t, [4]byte{0, 0, 0, 255}, pixel(f, 39, 0))
	assert.Equal(t, [4]byte{0, 0, 0, 255}, pixel(f, 0, 39))
	assert.Equal(t, 1, dup.last().released)
}

func TestCapture_ServesCacheWithinTimeout(t *testing.T) {
	dup := &fakeDuplicator{
		outs: []OutputDesc{{Index: 0, Bounds: testDisplay.Bounds}},
		next: []AcquireStatus{FrameReady, FrameTimeout, FrameTimeout, FrameTimeout},
	}
	s, clk := newTestSource(dup, &fakeBlitter{}, &countingNotifier{})
	region := image.Rect(110, 110, 150, 150)

	fresh, err := s.Capture(region, dupParams())
	require.NoError(t, err)
	require.NotNil(t, fresh)
	want := append([]byte(nil), fresh.Pix...)
	Release(fresh)

	clk.advance(10 * time.Millisecond)
	cached, err := s.Capture(region, dupParams())
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, want, cached.Pix)
	Release(cached)

	other, err := s.Capture(region.Add(image.Pt(1, 0)), dupParams())
	require.NoError(t, err)
	assert.Nil(t, other, "cache is keyed by region")

	clk.advance(10 * time.Millisecond)
	expired, err := s.Capture(region, dupParams())
	require.NoError(t, err)
	assert.Nil(t, expired)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.CacheHits)
	assert.Equal(t, uint64(2), st.Misses)
}

func TestNotifyDisplayChanged_DefersRebuild(t *testing.T) {
	dup := &fakeDuplicator{outs: []OutputDesc{{Index: 0, Bounds: testDisplay.Bounds}}}
	s, _ := newTestSource(dup, &fakeBlitter{}, &countingNotifier{})
	region := image.Rect(110, 110, 150, 150)

	f, _ := s.Capture(region, dupParams())
	Release(f)
	require.Len(t, dup.opened, 1)

	s.NotifyDisplayChanged()
	assert.True(t, s.RebuildPending())
	assert.Len(t, dup.opened, 1, "notification must not rebuild synchronously")
	assert.False(t, dup.opened[0].closed)

	f, _ = s.Capture(region, dupParams())
	Release(f)
	assert.Len(t, dup.opened, 2)
	assert.True(t, dup.opened[0].closed)
	assert.False(t, s.RebuildPending())
	assert.Equal(t, uint64(1), s.Stats().Rebuilds)
}

func TestCapture_RebuildsAfterConsecutiveFailures(t *testing.T) {
	dup := &fakeDuplicator{
		outs: []OutputDesc{{Index: 0, Bounds: testDisplay.Bounds}},
		next: []AcquireStatus{FrameAccessLost, FrameAccessLost, FrameAccessLost},
	}
	s, _ := newTestSource(dup, &fakeBlitter{}, &countingNotifier{})
	region := image.Rect(110, 110, 150, 150)

	for i := 0; i < 2; i++ {
		f, err := s.Capture(region, dupParams())
		require.NoError(t, err)
		assert.Nil(t, f)
		assert.False(t, s.RebuildPending())
	}
	f, _ := s.Capture(region, dupParams())
	assert.Nil(t, f)
	assert.True(t, s.RebuildPending())
	assert.Len(t, dup.opened, 1)

	f, _ = s.Capture(region, dupParams())
	require.NotNil(t, f)
	Release(f)
	assert.Len(t, dup.opened, 2)
}

func TestCapture_DisplayBoundsChangeRebuilds(t *testing.T) {
	moved := display.Display{Index: 1, Bounds: image.Rect(200, 100, 300, 200)}
	dup := &fakeDuplicator{outs: []OutputDesc{
		{Index: 0, Bounds: testDisplay.Bounds},
		{Index: 1, Bounds: moved.Bounds},
	}}
	s, _ := newTestSource(dup, &fakeBlitter{}, &countingNotifier{})

	f, _ := s.Capture(image.Rect(110, 110, 150, 150), dupParams())
	Release(f)
	p := dupParams()
	p.Display = moved
	f, _ = s.Capture(image.Rect(210, 110, 250, 150), p)
	require.NotNil(t, f)
	defer Release(f)
	assert.Len(t, dup.opened, 2)
	assert.Equal(t, moved.Bounds, dup.last().bounds)
	assert.Equal(t, [4]byte{10, 10, 7, 255}, pixel(f, 0, 0))
}

func TestCapture_UnsupportedFallsBackOnce(t *testing.T) {
	dup := &fakeDuplicator{listErr: ErrUnsupported}
	blit := &fakeBlitter{}
	notes := &countingNotifier{}
	s, _ := newTestSource(dup, blit, notes)
	region := image.Rect(110, 110, 150, 150)

	for i := 0; i < 3; i++ {
		f, err := s.Capture(region, dupParams())
		require.NoError(t, err)
		require.NotNil(t, f, "fallback serves a frame in the same tick")
		assert.Equal(t, byte(0x42), f.Pix[0])
	}
	assert.True(t, s.Disabled())
	assert.Len(t, notes.msgs, 1)
	assert.Equal(t, 3, blit.blits)
	assert.Equal(t, "blit", s.Stats().Method)
}

func TestCapture_RecoverableInitErrorRetries(t *testing.T) {
	dup := &fakeDuplicator{listErr: errors.New("busy")}
	s, _ := newTestSource(dup, &fakeBlitter{}, &countingNotifier{})
	region := image.Rect(110, 110, 150, 150)

	f, err := s.Capture(region, dupParams())
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, s.RebuildPending())
	assert.False(t, s.Disabled())

	dup.listErr = nil
	dup.outs = []OutputDesc{{Index: 0, Bounds: testDisplay.Bounds}}
	f, err = s.Capture(region, dupParams())
	require.NoError(t, err)
	require.NotNil(t, f)
	Release(f)
}

func TestCapture_SwitchingMethodDisposesResources(t *testing.T) {
	dup := &fakeDuplicator{outs: []OutputDesc{{Index: 0, Bounds: testDisplay.Bounds}}}
	blit := &fakeBlitter{}
	s, _ := newTestSource(dup, blit, &countingNotifier{})
	region := image.Rect(110, 110, 150, 150)

	f, _ := s.Capture(region, dupParams())
	Release(f)
	bp := dupParams()
	bp.Method = config.CaptureBlit
	f, err := s.Capture(region, bp)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.True(t, dup.opened[0].closed)

	f, _ = s.Capture(region, dupParams())
	Release(f)
	assert.Equal(t, 1, blit.closed)
	assert.Len(t, dup.opened, 2)

	require.NoError(t, s.Close())
	assert.True(t, dup.last().closed)
}

func TestCapture_EmptyRegion(t *testing.T) {
	s, _ := newTestSource(&fakeDuplicator{}, &fakeBlitter{}, &countingNotifier{})
	_, err := s.Capture(image.Rectangle{}, dupParams())
	assert.ErrorIs(t, err, ErrRegionSize)
}

func TestMatchOutput(t *testing.T) {
	outs := []OutputDesc{
		{Index: 0, Name: "a", Bounds: image.Rect(0, 0, 1920, 1080)},
		{Index: 1, Name: "b", Bounds: image.Rect(1920, 0, 3840, 1080)},
	}
	o, ok := matchOutput(outs, display.Display{Index: 0, Bounds: image.Rect(1920, 0, 3840, 1080)})
	require.True(t, ok)
	assert.Equal(t, "b", o.Name, "bounds take precedence over index")

	o, ok = matchOutput(outs, display.Display{Index: 1, Bounds: image.Rect(0, 0, 2560, 1440)})
	require.True(t, ok)
	assert.Equal(t, "b", o.Name)

	_, ok = matchOutput(outs, display.Display{Index: 5, Bounds: image.Rect(0, 0, 1, 1)})
	assert.False(t, ok)
}
