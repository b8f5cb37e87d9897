//go:build windows

package action

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

const (
	mouseeventfMove     = 0x0001
	mouseeventfLeftDown = 0x0002
	mouseeventfLeftUp   = 0x0004
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procMouseEvent       = user32.NewProc("mouse_event")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
)

// MouseSink injects relative motion and left button events with mouse_event.
type MouseSink struct {
	// ClickHold is the delay between press and release in Click.
	ClickHold time.Duration
}

// NewPlatformSink returns the Win32 injection sink.
func NewPlatformSink() Sink { return &MouseSink{ClickHold: 20 * time.Millisecond} }

func mouseEvent(flags uint32, dx, dy int) error {
	if err := procMouseEvent.Find(); err != nil {
		return fmt.Errorf("action: mouse_event: %w", err)
	}
	_, _, _ = procMouseEvent.Call(uintptr(flags), uintptr(int32(dx)), uintptr(int32(dy)), 0, 0)
	return nil
}

func (s *MouseSink) Move(dx, dy int) error {
	if dx == 0 && dy == 0 {
		return nil
	}
	return mouseEvent(mouseeventfMove, dx, dy)
}

func (s *MouseSink) Press() error   { return mouseEvent(mouseeventfLeftDown, 0, 0) }
func (s *MouseSink) Release() error { return mouseEvent(mouseeventfLeftUp, 0, 0) }

func (s *MouseSink) Click() error {
	if err := s.Press(); err != nil {
		return err
	}
	time.Sleep(s.ClickHold)
	return s.Release()
}

// AsyncKeys polls key state with GetAsyncKeyState.
type AsyncKeys struct{}

// NewPlatformKeys returns the Win32 key poller.
func NewPlatformKeys() Keys { return AsyncKeys{} }

func (AsyncKeys) Held(binding string) bool {
	vk, ok := ParseVK(binding)
	if !ok {
		return false
	}
	r, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return r&0x8000 != 0
}
