//go:build windows

package capture

// Windows region capture through GDI. The memory DC and top-down DIB section
// are kept across calls and recreated only when the region size changes; each
// Blit BitBlt's the screen into the DIB and copies the BGRA rows into the
// frame buffer without conversion.

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Win32 constants
const (
	srccopy      = 0x00CC0020
	captureblt   = 0x40000000
	dibRGBColors = 0
	biRgb        = 0
)

// Win32 DLL procs (lazy loaded)
var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	gdi32                  = windows.NewLazySystemDLL("gdi32.dll")
	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procBitBlt             = gdi32.NewProc("BitBlt")
	procCreateDIBSection   = gdi32.NewProc("CreateDIBSection")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
)

// BITMAPINFO structures (Win32 layout).
type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	_      [4]byte // one RGBQUAD placeholder (unused for 32-bit)
}

// NewPlatformBlitter returns the GDI blitter.
func NewPlatformBlitter() Blitter { return &gdiBlitter{} }

type gdiBlitter struct {
	memDC uintptr
	bmp   uintptr
	prev  uintptr
	bits  unsafe.Pointer
	w, h  int
}

func (g *gdiBlitter) ensure(screenDC uintptr, w, h int) error {
	if g.memDC != 0 && g.w == w && g.h == h {
		return nil
	}
	g.release()

	memDC, _, _ := procCreateCompatibleDC.Call(screenDC)
	if memDC == 0 {
		return fmt.Errorf("CreateCompatibleDC failed winerr=%d", windows.GetLastError())
	}

	// Set up BITMAPINFO for top-down 32-bit DIB.
	var bi bitmapInfo
	bi.Header.BiSize = uint32(unsafe.Sizeof(bi.Header))
	bi.Header.BiWidth = int32(w)
	bi.Header.BiHeight = -int32(h) // top-down
	bi.Header.BiPlanes = 1
	bi.Header.BiBitCount = 32
	bi.Header.BiCompression = biRgb
	bi.Header.BiSizeImage = uint32(w * h * 4)

	var bits unsafe.Pointer
	bmp, _, _ := procCreateDIBSection.Call(memDC, uintptr(unsafe.Pointer(&bi)), dibRGBColors, uintptr(unsafe.Pointer(&bits)), 0, 0)
	if bmp == 0 {
		procDeleteDC.Call(memDC)
		return fmt.Errorf("CreateDIBSection failed winerr=%d", windows.GetLastError())
	}
	prev, _, _ := procSelectObject.Call(memDC, bmp)
	if prev == 0 || prev == ^uintptr(0) { // failure or GDI_ERROR
		procDeleteObject.Call(bmp)
		procDeleteDC.Call(memDC)
		return fmt.Errorf("SelectObject failed winerr=%d", windows.GetLastError())
	}
	g.memDC, g.bmp, g.prev, g.bits, g.w, g.h = memDC, bmp, prev, bits, w, h
	return nil
}

// Blit performs BitBlt from the screen DC at dst.Region into the DIB section.
func (g *gdiBlitter) Blit(dst *Frame) error {
	r := dst.Region
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return ErrRegionSize
	}
	screenDC, _, _ := procGetDC.Call(0)
	if screenDC == 0 {
		return fmt.Errorf("GetDC failed winerr=%d", windows.GetLastError())
	}
	defer procReleaseDC.Call(0, screenDC)

	if err := g.ensure(screenDC, w, h); err != nil {
		return err
	}
	ok, _, _ := procBitBlt.Call(g.memDC, 0, 0, uintptr(w), uintptr(h), screenDC,
		uintptr(int32(r.Min.X)), uintptr(int32(r.Min.Y)), srccopy|captureblt)
	if ok == 0 {
		return fmt.Errorf("BitBlt failed x=%d y=%d w=%d h=%d winerr=%d", r.Min.X, r.Min.Y, w, h, windows.GetLastError())
	}
	pixLen := w * h * 4
	src := unsafe.Slice((*byte)(g.bits), pixLen)
	copy(dst.Pix[:pixLen], src)
	dst.Layout = LayoutBGRA
	return nil
}

func (g *gdiBlitter) release() {
	if g.memDC == 0 {
		return
	}
	procSelectObject.Call(g.memDC, g.prev)
	procDeleteObject.Call(g.bmp)
	procDeleteDC.Call(g.memDC)
	g.memDC, g.bmp, g.prev, g.bits, g.w, g.h = 0, 0, 0, nil, 0, 0
}

func (g *gdiBlitter) Close() error {
	g.release()
	return nil
}
