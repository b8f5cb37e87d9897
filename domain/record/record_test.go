package record

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-aim-go/domain/capture"
	"github.com/soocke/pixel-aim-go/domain/detect"
)

func newTestRecorder(t *testing.T) (*Recorder, *time.Time) {
	t.Helper()
	r := New(t.TempDir(), nil)
	clk := time.Unix(500, 0)
	r.now = func() time.Time { return clk }
	n := 0
	r.newID = func() string { n++; return []string{"a", "b", "c", "d"}[n-1] }
	return r, &clk
}

func frame() *capture.Frame { return capture.NewFrame(image.Rect(0, 0, 64, 64), capture.LayoutBGRA) }

func TestLabel(t *testing.T) {
	assert.Equal(t, "0 0.5 0.25 0.25 0.125", Label(detect.Box{X: 24, Y: 12, W: 16, H: 8}, 64, 64))
}

func TestSave_WritesImageAndLabel(t *testing.T) {
	r, _ := newTestRecorder(t)
	cand := &detect.Candidate{Box: detect.Box{X: 24, Y: 12, W: 16, H: 8}}
	path, err := r.Save(frame(), cand, Params{Collect: true, AutoLabel: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.dir, "images", "a.jpg"), path)
	assert.FileExists(t, path)
	b, err := os.ReadFile(filepath.Join(r.dir, "labels", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0 0.5 0.25 0.25 0.125", string(b))
}

func TestSave_Cooldown(t *testing.T) {
	r, clk := newTestRecorder(t)
	p := Params{Collect: true}
	path, err := r.Save(frame(), nil, p)
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	*clk = clk.Add(100 * time.Millisecond)
	path, _ = r.Save(frame(), nil, p)
	assert.Empty(t, path)

	*clk = clk.Add(Cooldown)
	path, _ = r.Save(frame(), nil, p)
	assert.NotEmpty(t, path)
	assert.Equal(t, uint64(2), r.Saved())
	assert.NoDirExists(t, filepath.Join(r.dir, "labels"))
}

func TestSave_Gates(t *testing.T) {
	r, _ := newTestRecorder(t)
	path, _ := r.Save(frame(), nil, Params{})
	assert.Empty(t, path)
	path, _ = r.Save(frame(), nil, Params{Collect: true, ConstantTracking: true})
	assert.Empty(t, path, "constant tracking without auto label")
	path, _ = r.Save(frame(), nil, Params{Collect: true, ConstantTracking: true, AutoLabel: true})
	assert.NotEmpty(t, path)
}
