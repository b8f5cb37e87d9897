package detect

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Box is an axis-aligned box in detection-space pixels.
type Box struct {
	X, Y, W, H float64 // top-left corner and size
}

// Center returns the box center.
func (b Box) Center() (float64, float64) { return b.X + b.W/2, b.Y + b.H/2 }

// Candidate is one decoded detector slot that passed the selection filters.
type Candidate struct {
	Slot       int
	Box        Box
	Confidence float64
	// NormX and NormY are the box center divided by the detection input size.
	NormX, NormY float64
}

// Target is the selected candidate with its box in absolute screen coordinates.
type Target struct {
	Candidate
	Screen   image.Rectangle
	Distance float64 // squared distance to the detection input center
}

// SelectParams are the per-tick selection settings.
type SelectParams struct {
	Size          int // detection input size S
	MinConfidence float64
	FOVSize       float64 // side of the FOV window centered on the detection input
	Region        image.Rectangle
}

// Selector picks the candidate nearest the detection input center. Its
// buffers are reused across calls; it is not safe for concurrent use.
type Selector struct {
	points  candidatePoints
	cands   []Candidate
	indexed int
}

// Indexed returns how many candidates were inserted into the spatial index by
// the last Select call.
func (s *Selector) Indexed() int { return s.indexed }

// Candidates returns the candidates that passed the filters on the last call.
func (s *Selector) Candidates() []Candidate { return s.cands }

// Select filters the grid by confidence and FOV window and returns the
// candidate nearest to (S/2, S/2). ok is false when nothing survives.
func (s *Selector) Select(g Grid, p SelectParams) (Target, bool) {
	s.points = s.points[:0]
	s.cands = s.cands[:0]
	s.indexed = 0
	if !g.Valid() || p.Size <= 0 {
		return Target{}, false
	}
	half := float64(p.Size) / 2
	fovMin, fovMax := half-p.FOVSize/2, half+p.FOVSize/2

	for i := 0; i < g.Slots; i++ {
		conf := clamp01(float64(g.At(FieldObjectness, i)))
		if conf < p.MinConfidence {
			continue
		}
		cx, cy := float64(g.At(FieldCenterX, i)), float64(g.At(FieldCenterY, i))
		w, h := float64(g.At(FieldWidth, i)), float64(g.At(FieldHeight, i))
		minX, minY := cx-w/2, cy-h/2
		if minX < fovMin || cx+w/2 > fovMax || minY < fovMin || cy+h/2 > fovMax {
			continue
		}
		s.points = append(s.points, candidatePoint{x: cx, y: cy, idx: len(s.cands)})
		s.cands = append(s.cands, Candidate{
			Slot:       i,
			Box:        Box{X: minX, Y: minY, W: w, H: h},
			Confidence: conf,
			NormX:      cx / float64(p.Size),
			NormY:      cy / float64(p.Size),
		})
	}
	s.indexed = len(s.points)
	if s.indexed == 0 {
		return Target{}, false
	}

	tree := kdtree.New(s.points, false)
	q := candidatePoint{x: half, y: half, idx: -1}
	_, dist := tree.Nearest(q)

	// collect every point at the nearest distance and keep the earliest slot
	keep := kdtree.NewDistKeeper(dist)
	tree.NearestSet(keep, q)
	best := -1
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		if idx := c.Comparable.(candidatePoint).idx; best < 0 || idx < best {
			best = idx
		}
	}
	if best < 0 {
		return Target{}, false
	}
	c := s.cands[best]
	return Target{Candidate: c, Screen: translate(c.Box, p.Region.Min), Distance: dist}, true
}

func translate(b Box, origin image.Point) image.Rectangle {
	x0 := int(math.Round(b.X)) + origin.X
	y0 := int(math.Round(b.Y)) + origin.Y
	return image.Rect(x0, y0, x0+int(math.Round(b.W)), y0+int(math.Round(b.H)))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// candidatePoint is a k-d tree point carrying its insertion index.
type candidatePoint struct {
	x, y float64
	idx  int
}

func (p candidatePoint) coord(d kdtree.Dim) float64 {
	if d == 0 {
		return p.x
	}
	return p.y
}

func (p candidatePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(candidatePoint).coord(d)
}

func (p candidatePoint) Dims() int { return 2 }

func (p candidatePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(candidatePoint)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type candidatePoints []candidatePoint

func (p candidatePoints) Index(i int) kdtree.Comparable { return p[i] }
func (p candidatePoints) Len() int                      { return len(p) }
func (p candidatePoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// Pivot partitions around the median of medians, which is deterministic.
func (p candidatePoints) Pivot(d kdtree.Dim) int {
	pl := candidatePlane{points: p, dim: d}
	return kdtree.Partition(pl, kdtree.MedianOfMedians(pl))
}

type candidatePlane struct {
	points candidatePoints
	dim    kdtree.Dim
}

func (p candidatePlane) Len() int { return len(p.points) }
func (p candidatePlane) Less(i, j int) bool {
	a, b := p.points[i], p.points[j]
	if a.coord(p.dim) != b.coord(p.dim) {
		return a.coord(p.dim) < b.coord(p.dim)
	}
	return a.idx < b.idx
}
func (p candidatePlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p candidatePlane) Slice(start, end int) kdtree.SortSlicer {
	return candidatePlane{points: p.points[start:end], dim: p.dim}
}
