package capture

import (
	"image"
	"sync"
)

// Reusable frame pool for duplication captures and cache hits. Frames served
// to the aim loop are released back with Release once the tensor has been
// built, so steady-state capture does not allocate a new backing slice per
// tick. Frames owned by a strategy (the blit buffer, the cache entry) are not
// pooled and Release ignores them.

var framePool sync.Pool // stores *Frame

// acquireFrame returns a pooled frame sized to region. The returned Pix length
// exactly matches region area * 4, and Stride is width*4.
func acquireFrame(region image.Rectangle, layout Layout) *Frame {
	w, h := region.Dx(), region.Dy()
	if w <= 0 || h <= 0 {
		return &Frame{Region: region, Layout: layout, pooled: true}
	}
	needed := w * h * 4
	var f *Frame
	if v := framePool.Get(); v != nil {
		f = v.(*Frame)
	}
	if f == nil || cap(f.Pix) < needed {
		f = &Frame{Pix: make([]byte, needed)}
	} else {
		f.Pix = f.Pix[:needed]
	}
	f.Stride = w * 4
	f.Region = region
	f.Layout = layout
	f.pooled = true
	return f
}

// Release returns a frame obtained from Source.Capture to the pool. The frame
// must no longer be accessed by the caller after invoking Release.
func Release(f *Frame) {
	if f == nil || !f.pooled || f.Pix == nil {
		return
	}
	framePool.Put(f)
}
