// Package engine runs the detector. The ONNX implementation goes through the
// OpenCV dnn module; the loop only depends on the Engine interface.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"gocv.io/x/gocv"

	"github.com/soocke/pixel-aim-go/domain/detect"
	"github.com/soocke/pixel-aim-go/domain/telemetry"
)

// ErrNotLoaded is returned by Infer when no model is loaded.
var ErrNotLoaded = errors.New("engine: model not loaded")

// Engine turns a [3, S, S] tensor into a raw output grid.
type Engine interface {
	Infer(tensor []float32) (detect.Grid, error)
	Close() error
}

const (
	inputName     = "images"
	noticeTimeout = 6 * time.Second
)

// Notice keys shared with the loop so each engine fault is reported once.
const (
	NoticeUnavailable = "engine-unavailable"
	NoticeShape       = "engine-shape"
)

// ONNX runs a fixed-shape ONNX detector. The returned grid aliases an internal
// buffer that is overwritten by the next Infer call.
type ONNX struct {
	net    gocv.Net
	size   int
	slots  int
	grid   []float32
	logger *slog.Logger
}

// LoadONNX reads the model at path and runs one warm-up inference to validate
// the output shape. A shape mismatch is not fatal: the notice is shown once
// and the engine is returned anyway. Infer then decodes the leading rows.
func LoadONNX(path string, size, slots int, notices *telemetry.Once, logger *slog.Logger) (*ONNX, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("engine: load %q: empty network", path)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("engine: set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("engine: set target: %w", err)
	}
	e := &ONNX{net: net, size: size, slots: slots, logger: logger}

	shape, err := e.warmUp()
	if err != nil {
		e.Close()
		return nil, err
	}
	if CheckShape(shape, slots, notices, logger) && logger != nil {
		logger.Info("engine.loaded", "model", path, "size", size, "slots", slots)
	}
	return e, nil
}

// CheckShape reports whether shape is the expected [1, 5, slots]. Otherwise it
// logs the mismatch and shows the shape notice once; inference still runs on
// whatever leading rows the output has.
func CheckShape(shape []int, slots int, notices *telemetry.Once, logger *slog.Logger) bool {
	if detect.ValidateShape(shape, slots) == nil {
		return true
	}
	if logger != nil {
		logger.Warn("engine.shape_mismatch", "shape", shape, "slots", slots)
	}
	if notices != nil {
		notices.NoticeOnce(NoticeShape,
			fmt.Sprintf("Model output shape %v is not supported, expected [1 %d %d]. Detection may be degraded.", shape, detect.NumFields, slots),
			noticeTimeout)
	}
	return false
}

func (e *ONNX) warmUp() ([]int, error) {
	out, err := e.forward(make([]float32, 3*e.size*e.size))
	if err != nil {
		return nil, fmt.Errorf("engine: warm-up: %w", err)
	}
	defer out.Close()
	return out.Size(), nil
}

func (e *ONNX) forward(tensor []float32) (gocv.Mat, error) {
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&tensor[0])), len(tensor)*4)
	blob, err := gocv.NewMatWithSizesFromBytes([]int{1, 3, e.size, e.size}, gocv.MatTypeCV32F, raw)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("input blob: %w", err)
	}
	defer blob.Close()
	e.net.SetInput(blob, inputName)
	out := e.net.Forward("")
	if out.Empty() {
		out.Close()
		return gocv.Mat{}, errors.New("empty output")
	}
	return out, nil
}

// Infer runs the detector on tensor, which must hold 3*S*S values.
func (e *ONNX) Infer(tensor []float32) (detect.Grid, error) {
	if e == nil || e.net.Empty() {
		return detect.Grid{}, ErrNotLoaded
	}
	if len(tensor) != 3*e.size*e.size {
		return detect.Grid{}, fmt.Errorf("engine: tensor length %d want %d", len(tensor), 3*e.size*e.size)
	}
	out, err := e.forward(tensor)
	if err != nil {
		return detect.Grid{}, fmt.Errorf("engine: infer: %w", err)
	}
	defer out.Close()
	data, err := out.DataPtrFloat32()
	if err != nil {
		return detect.Grid{}, fmt.Errorf("engine: read output: %w", err)
	}
	g, err := detect.GridFromOutput(out.Size(), data)
	if err != nil {
		return detect.Grid{}, err
	}
	if cap(e.grid) < len(g.Data) {
		e.grid = make([]float32, len(g.Data))
	}
	e.grid = e.grid[:len(g.Data)]
	copy(e.grid, g.Data)
	return detect.Grid{Data: e.grid, Slots: g.Slots}, nil
}

func (e *ONNX) Close() error {
	if e == nil {
		return nil
	}
	return e.net.Close()
}
