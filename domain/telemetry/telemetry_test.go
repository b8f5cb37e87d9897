package telemetry

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct{ msgs []string }

func (r *recordingNotifier) Notice(msg string, _ time.Duration) { r.msgs = append(r.msgs, msg) }

func TestOnce_SuppressesRepeats(t *testing.T) {
	rec := &recordingNotifier{}
	o := &Once{Next: rec}
	assert.True(t, o.NoticeOnce("dup", "unsupported", time.Second))
	assert.False(t, o.NoticeOnce("dup", "unsupported", time.Second))
	assert.True(t, o.NoticeOnce("engine", "shape mismatch", time.Second))
	assert.Equal(t, []string{"unsupported", "shape mismatch"}, rec.msgs)

	o.Reset("dup")
	assert.True(t, o.NoticeOnce("dup", "unsupported", time.Second))
	assert.Len(t, rec.msgs, 3)
}

func TestLogOverlay_TracksVisibility(t *testing.T) {
	o := &LogOverlay{}
	assert.False(t, o.Visible())
	o.Show(image.Rect(0, 0, 10, 10), 0.9)
	assert.True(t, o.Visible())
	o.Hide()
	assert.False(t, o.Visible())
}
