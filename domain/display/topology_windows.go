//go:build windows

package display

import (
	"fmt"
	"image"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	smCxScreen = 0
	smCyScreen = 1
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetSystemMetrics = user32.NewProc("GetSystemMetrics")
	procGetCursorPos     = user32.NewProc("GetCursorPos")
)

type point struct{ X, Y int32 }

// SystemTopology reports the primary monitor and the Win32 cursor position.
type SystemTopology struct{}

func (SystemTopology) Current() (Display, error) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	if int32(w) <= 0 || int32(h) <= 0 {
		return Display{}, fmt.Errorf("display: invalid screen size w=%d h=%d", int32(w), int32(h))
	}
	return Display{Index: 0, Name: `\\.\DISPLAY1`, Bounds: image.Rect(0, 0, int(int32(w)), int(int32(h)))}, nil
}

func (SystemTopology) Cursor() (image.Point, bool) {
	var p point
	r, _, _ := procGetCursorPos.Call(uintptr(unsafe.Pointer(&p)))
	if r == 0 {
		return image.Point{}, false
	}
	return image.Pt(int(p.X), int(p.Y)), true
}
