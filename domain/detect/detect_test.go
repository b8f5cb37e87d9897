package detect

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-aim-go/config"
	"github.com/soocke/pixel-aim-go/domain/capture"
)

const testSize = 640

type slot struct{ cx, cy, w, h, obj float32 }

func makeGrid(slots int, set ...slot) Grid {
	g := Grid{Data: make([]float32, NumFields*slots), Slots: slots}
	for i, s := range set {
		g.Data[FieldCenterX*slots+i] = s.cx
		g.Data[FieldCenterY*slots+i] = s.cy
		g.Data[FieldWidth*slots+i] = s.w
		g.Data[FieldHeight*slots+i] = s.h
		g.Data[FieldObjectness*slots+i] = s.obj
	}
	return g
}

func params() SelectParams {
	return SelectParams{Size: testSize, MinConfidence: 0.45, FOVSize: testSize, Region: image.Rect(640, 220, 1280, 860)}
}

func TestValidateShape(t *testing.T) {
	assert.NoError(t, ValidateShape([]int{1, 5, 8400}, 8400))
	assert.ErrorIs(t, ValidateShape([]int{1, 84, 8400}, 8400), ErrShapeMismatch)
	assert.ErrorIs(t, ValidateShape([]int{5, 8400}, 8400), ErrShapeMismatch)
	assert.ErrorIs(t, ValidateShape([]int{1, 5, 2100}, 8400), ErrShapeMismatch)
}

func TestGridFromOutput(t *testing.T) {
	data := make([]float32, 84*3)
	for i := range data {
		data[i] = float32(i)
	}
	g, err := GridFromOutput([]int{1, 84, 3}, data)
	require.NoError(t, err)
	require.True(t, g.Valid())
	assert.Equal(t, 3, g.Slots)
	assert.Equal(t, float32(1), g.At(FieldCenterX, 1))
	assert.Equal(t, float32(4*3+2), g.At(FieldObjectness, 2))

	g, err = GridFromOutput([]int{1, 5, 3}, data[:15])
	require.NoError(t, err)
	assert.True(t, g.Valid())

	for _, shape := range [][]int{{1, 4, 3}, {5, 3}, {2, 5, 3}, {1, 5, 0}} {
		_, err := GridFromOutput(shape, data)
		assert.ErrorIs(t, err, ErrUndecodable, "%v", shape)
	}
	_, err = GridFromOutput([]int{1, 84, 8400}, data)
	assert.ErrorIs(t, err, ErrUndecodable, "short data")
}

func TestSelect_CenteredCandidate(t *testing.T) {
	var s Selector
	g := makeGrid(16, slot{320, 320, 40, 80, 0.9})
	tgt, ok := s.Select(g, params())
	require.True(t, ok)
	assert.Equal(t, 0.0, tgt.Distance)
	assert.Equal(t, 0, tgt.Slot)
	assert.InDelta(t, 0.9, tgt.Confidence, 1e-6)
	assert.Equal(t, image.Rect(640+300, 220+280, 640+340, 220+360), tgt.Screen)
	assert.InDelta(t, 0.5, tgt.NormX, 1e-9)
}

func TestSelect_BelowThresholdNeverIndexed(t *testing.T) {
	var s Selector
	g := makeGrid(8,
		slot{320, 320, 10, 10, 0.44},
		slot{300, 300, 10, 10, 0.1},
		slot{100, 100, 10, 10, 0.0},
	)
	_, ok := s.Select(g, params())
	assert.False(t, ok)
	assert.Equal(t, 0, s.Indexed())
}

func TestSelect_FOVIndependentOfConfidence(t *testing.T) {
	var s Selector
	p := params()
	p.FOVSize = 200 // window [220, 420]
	g := makeGrid(8,
		slot{320, 320, 220, 20, 1.0}, // spans x 210..430
		slot{410, 320, 30, 30, 1.0},  // right edge 425
		slot{400, 400, 20, 20, 0.5},  // touches 410, inside
	)
	tgt, ok := s.Select(g, p)
	require.True(t, ok)
	assert.Equal(t, 1, s.Indexed())
	assert.Equal(t, 2, tgt.Slot)
}

func TestSelect_ClampsConfidence(t *testing.T) {
	var s Selector
	g := makeGrid(4, slot{320, 320, 10, 10, 3.5})
	tgt, ok := s.Select(g, params())
	require.True(t, ok)
	assert.Equal(t, 1.0, tgt.Confidence)
}

func TestSelect_NearestToCenter(t *testing.T) {
	var s Selector
	g := makeGrid(8,
		slot{100, 100, 20, 20, 0.99},
		slot{330, 310, 20, 20, 0.5},
		slot{500, 500, 20, 20, 0.8},
	)
	tgt, ok := s.Select(g, params())
	require.True(t, ok)
	assert.Equal(t, 1, tgt.Slot)
	assert.Equal(t, 200.0, tgt.Distance)
	assert.Len(t, s.Candidates(), 3)
}

func TestSelect_EquidistantIsDeterministic(t *testing.T) {
	g := makeGrid(16,
		slot{200, 200, 20, 20, 0.6},
		slot{340, 320, 20, 20, 0.9},
		slot{300, 320, 20, 20, 0.7},
		slot{320, 340, 20, 20, 0.8},
		slot{320, 300, 20, 20, 0.5},
	)
	var first int
	for i := 0; i < 50; i++ {
		var s Selector
		tgt, ok := s.Select(g, params())
		require.True(t, ok)
		if i == 0 {
			first = tgt.Slot
		}
		assert.Equal(t, first, tgt.Slot)
	}
	assert.Equal(t, 1, first, "earliest inserted of the tied candidates")
}

func TestSelect_InvalidGrid(t *testing.T) {
	var s Selector
	_, ok := s.Select(Grid{Data: make([]float32, 7), Slots: 2}, params())
	assert.False(t, ok)
}

func TestAimPoint_CenterAlignmentScales(t *testing.T) {
	p := AimParams{
		Size:    testSize,
		Display: image.Rect(0, 0, 1920, 1080),
		Region:  image.Rect(640, 220, 1280, 860),
	}
	x, y := AimPoint(Box{X: 300, Y: 300, W: 40, H: 40}, p)
	assert.InDelta(t, 960, x, 1e-9)
	assert.InDelta(t, 540, y, 1e-9)

	x, y = AimPoint(Box{X: 380, Y: 320, W: 40, H: 40}, p)
	assert.InDelta(t, 960+80*3, x, 1e-9)
	assert.InDelta(t, 540+20*1.6875, y, 1e-9)
}

func TestAimPoint_AlignmentAndOffsets(t *testing.T) {
	p := AimParams{
		Size:      testSize,
		Display:   image.Rect(0, 0, 640, 640),
		Region:    image.Rect(0, 0, 640, 640),
		XOffset:   5,
		YOffset:   -3,
		Alignment: config.AlignTop,
	}
	b := Box{X: 300, Y: 300, W: 40, H: 40}
	x, y := AimPoint(b, p)
	assert.InDelta(t, 325, x, 1e-9)
	assert.InDelta(t, 297, y, 1e-9)

	p.Alignment = config.AlignBottom
	_, y = AimPoint(b, p)
	assert.InDelta(t, 337, y, 1e-9)

	p.XPercentAdjust, p.XOffsetPercent = true, 25
	p.YPercentAdjust, p.YOffsetPercent = true, 75
	x, y = AimPoint(b, p)
	assert.InDelta(t, 310, x, 1e-9, "x offset is ignored in percent mode")
	assert.InDelta(t, 310-3, y, 1e-9)
}

func solidFrame(size int, layout capture.Layout, px [4]byte) *capture.Frame {
	f := capture.NewFrame(image.Rect(0, 0, size, size), layout)
	for i := 0; i < len(f.Pix); i += 4 {
		copy(f.Pix[i:i+4], px[:])
	}
	return f
}

func TestPreprocessor_PlanarRGB(t *testing.T) {
	const size = 8
	p := NewPreprocessor(size, 3)
	f := solidFrame(size, capture.LayoutBGRA, [4]byte{255, 0, 51, 255}) // B G R A
	// mark one pixel to check row/column placement
	off := 5*f.Stride + 2*4
	f.Pix[off+2] = 102

	out, err := p.Tensor(f)
	require.NoError(t, err)
	require.Len(t, out, 3*size*size)
	plane := size * size
	assert.InDelta(t, 0.2, out[0], 1e-6)
	assert.InDelta(t, 0.0, out[plane], 1e-6)
	assert.InDelta(t, 1.0, out[2*plane], 1e-6)
	assert.InDelta(t, 0.4, out[5*size+2], 1e-6)

	again, err := p.Tensor(solidFrame(size, capture.LayoutRGBA, [4]byte{255, 0, 51, 255}))
	require.NoError(t, err)
	assert.Same(t, &out[0], &again[0], "buffer is reused")
	assert.InDelta(t, 1.0, again[0], 1e-6)
	assert.InDelta(t, 0.2, again[2*plane], 1e-6)
}

func TestPreprocessor_RejectsWrongSize(t *testing.T) {
	p := NewPreprocessor(8, 0)
	_, err := p.Tensor(capture.NewFrame(image.Rect(0, 0, 4, 8), capture.LayoutBGRA))
	assert.ErrorIs(t, err, ErrFrameSize)
	_, err = p.Tensor(nil)
	assert.ErrorIs(t, err, ErrFrameSize)
}
