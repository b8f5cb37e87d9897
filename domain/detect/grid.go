package detect

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch reports a detector output that is not [1, 5, N].
	ErrShapeMismatch = errors.New("detect: output shape mismatch")
	// ErrUndecodable reports a detector output with no leading box and
	// objectness rows to read.
	ErrUndecodable = errors.New("detect: output not decodable")
	// ErrFrameSize reports a frame whose size differs from the detection input.
	ErrFrameSize = errors.New("detect: frame size does not match detection input")
)

// Fields of one candidate slot in the output grid.
const (
	FieldCenterX = iota
	FieldCenterY
	FieldWidth
	FieldHeight
	FieldObjectness
	NumFields
)

// Grid is a raw detector output of shape [1, NumFields, Slots], stored
// row-major: all center-x values first, then all center-y values and so on.
type Grid struct {
	Data  []float32
	Slots int
}

// At returns field f of slot i.
func (g Grid) At(f, i int) float32 { return g.Data[f*g.Slots+i] }

// Valid reports whether Data holds exactly NumFields*Slots values.
func (g Grid) Valid() bool { return g.Slots > 0 && len(g.Data) == NumFields*g.Slots }

// ValidateShape checks a detector output shape against [1, 5, slots].
func ValidateShape(shape []int, slots int) error {
	if len(shape) != 3 || shape[0] != 1 || shape[1] != NumFields || shape[2] != slots {
		return fmt.Errorf("%w: got %v want [1 %d %d]", ErrShapeMismatch, shape, NumFields, slots)
	}
	return nil
}

// GridFromOutput reads a raw output of shape [1, F, N] with F >= NumFields.
// Only the first NumFields rows are used, so a multi-class [1, 84, N] output
// yields its box rows and the first class score as objectness. The grid
// aliases data.
func GridFromOutput(shape []int, data []float32) (Grid, error) {
	if len(shape) != 3 || shape[0] != 1 || shape[1] < NumFields || shape[2] <= 0 {
		return Grid{}, fmt.Errorf("%w: shape %v", ErrUndecodable, shape)
	}
	n := shape[2]
	if len(data) < shape[1]*n {
		return Grid{}, fmt.Errorf("%w: %d values for shape %v", ErrUndecodable, len(data), shape)
	}
	return Grid{Data: data[:NumFields*n], Slots: n}, nil
}
