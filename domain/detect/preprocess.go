package detect

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/soocke/pixel-aim-go/domain/capture"
)

const inv255 = 1.0 / 255.0

// Preprocessor converts S×S frames into the planar [3, S, S] RGB tensor the
// detector consumes, each channel scaled to [0,1]. The output buffer is owned
// by the preprocessor and overwritten by the next call.
type Preprocessor struct {
	size    int
	workers int
	buf     []float32
	scratch [][]float32 // one row of 3*size floats per worker
}

// NewPreprocessor allocates the tensor buffer for detection input size.
// workers <= 0 uses GOMAXPROCS.
func NewPreprocessor(size, workers int) *Preprocessor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > size {
		workers = size
	}
	p := &Preprocessor{size: size, workers: workers, buf: make([]float32, 3*size*size)}
	p.scratch = make([][]float32, workers)
	for i := range p.scratch {
		p.scratch[i] = make([]float32, 3*size)
	}
	return p
}

// Size returns the detection input size.
func (p *Preprocessor) Size() int { return p.size }

// Tensor fills and returns the reusable tensor buffer for f. Rows are split
// into contiguous bands, one goroutine per band.
func (p *Preprocessor) Tensor(f *capture.Frame) ([]float32, error) {
	if f == nil || f.Width() != p.size || f.Height() != p.size {
		var w, h int
		if f != nil {
			w, h = f.Width(), f.Height()
		}
		return nil, fmt.Errorf("%w: %dx%d want %d", ErrFrameSize, w, h, p.size)
	}
	rOff, bOff := 2, 0
	if f.Layout == capture.LayoutRGBA {
		rOff, bOff = 0, 2
	}
	band := (p.size + p.workers - 1) / p.workers
	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		start := w * band
		end := min(start+band, p.size)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(row []float32, start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				p.convertRow(f, y, row, rOff, bOff)
			}
		}(p.scratch[w], start, end)
	}
	wg.Wait()
	return p.buf, nil
}

// convertRow converts pixel row y into row (R, G then B runs) and copies the
// three runs into their planes.
func (p *Preprocessor) convertRow(f *capture.Frame, y int, row []float32, rOff, bOff int) {
	s := p.size
	src := f.Pix[y*f.Stride : y*f.Stride+s*4]
	r, g, b := row[:s], row[s:2*s], row[2*s:3*s]
	for x := 0; x < s; x++ {
		px := src[x*4 : x*4+4]
		r[x] = float32(px[rOff]) * inv255
		g[x] = float32(px[1]) * inv255
		b[x] = float32(px[bOff]) * inv255
	}
	plane := s * s
	copy(p.buf[y*s:], r)
	copy(p.buf[plane+y*s:], g)
	copy(p.buf[2*plane+y*s:], b)
}
