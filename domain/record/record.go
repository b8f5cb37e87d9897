// Package record collects training data from live frames: JPEG images under
// images/ and, when auto labelling is on, YOLO label files under labels/.
package record

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/soocke/pixel-aim-go/config"
	"github.com/soocke/pixel-aim-go/domain/capture"
	"github.com/soocke/pixel-aim-go/domain/detect"
)

// Cooldown is the minimum time between two saved frames.
const Cooldown = 500 * time.Millisecond

// Params are the per-tick collection toggles.
type Params struct {
	Collect          bool
	AutoLabel        bool
	ConstantTracking bool
}

// ParamsFrom builds recorder params from a configuration snapshot.
func ParamsFrom(c *config.Config) Params {
	return Params{Collect: c.CollectData, AutoLabel: c.AutoLabel, ConstantTracking: c.ConstantTracking}
}

// Recorder writes frames to disk at most once per Cooldown.
type Recorder struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu    sync.Mutex
	last  time.Time
	saved uint64
}

func New(dir string, logger *slog.Logger) *Recorder {
	return &Recorder{dir: dir, logger: logger, now: time.Now, newID: func() string { return uuid.NewString() }}
}

// Save stores f when collection is enabled and the cooldown has elapsed. With
// auto labelling and a non-nil label, the label file is written alongside.
// Constant tracking suppresses collection unless auto labelling is on. It
// returns the image path, or "" when nothing was written.
func (r *Recorder) Save(f *capture.Frame, label *detect.Candidate, p Params) (string, error) {
	if f == nil || !p.Collect || (p.ConstantTracking && !p.AutoLabel) {
		return "", nil
	}
	r.mu.Lock()
	now := r.now()
	if !r.last.IsZero() && now.Sub(r.last) < Cooldown {
		r.mu.Unlock()
		return "", nil
	}
	r.last = now
	r.mu.Unlock()

	id := r.newID()
	imgDir := filepath.Join(r.dir, "images")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	imgPath := filepath.Join(imgDir, id+".jpg")
	if err := imaging.Save(f.RGBA(), imgPath, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("record: save image: %w", err)
	}

	if p.AutoLabel && label != nil {
		lblDir := filepath.Join(r.dir, "labels")
		if err := os.MkdirAll(lblDir, 0o755); err != nil {
			return imgPath, fmt.Errorf("record: %w", err)
		}
		line := Label(label.Box, f.Width(), f.Height())
		if err := os.WriteFile(filepath.Join(lblDir, id+".txt"), []byte(line), 0o644); err != nil {
			return imgPath, fmt.Errorf("record: save label: %w", err)
		}
	}
	r.mu.Lock()
	r.saved++
	r.mu.Unlock()
	if r.logger != nil {
		r.logger.Debug("record.saved", "path", imgPath, "labelled", p.AutoLabel && label != nil)
	}
	return imgPath, nil
}

// Saved returns the number of frames written.
func (r *Recorder) Saved() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved
}

// Label formats a single-class YOLO label: class, center and size normalized
// to the frame dimensions.
func Label(b detect.Box, w, h int) string {
	fw, fh := float64(w), float64(h)
	cx, cy := b.Center()
	return fmt.Sprintf("0 %g %g %g %g", cx/fw, cy/fh, b.W/fw, b.H/fh)
}
