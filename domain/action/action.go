// Package action delivers pointer commands to the operating system and reads
// the state of the aim key bindings.
package action

import (
	"log/slog"
	"strings"
	"sync/atomic"
)

// Sink accepts relative pointer motion and primary button commands. Every
// backend receives identical calls.
type Sink interface {
	Move(dx, dy int) error
	Press() error
	Release() error
	Click() error
}

// Keys reports whether a key binding is currently held.
type Keys interface {
	Held(binding string) bool
}

// Virtual-key codes for the mouse buttons.
const (
	VKLButton  = 0x01
	VKRButton  = 0x02
	VKMButton  = 0x04
	VKXButton1 = 0x05
	VKXButton2 = 0x06
)

var namedKeys = map[string]byte{
	"LMB": VKLButton, "LBUTTON": VKLButton,
	"RMB": VKRButton, "RBUTTON": VKRButton,
	"MMB": VKMButton, "MBUTTON": VKMButton,
	"XB1": VKXButton1, "MOUSE4": VKXButton1,
	"XB2": VKXButton2, "MOUSE5": VKXButton2,
	"SHIFT": 0x10, "CTRL": 0x11, "ALT": 0x12,
	"CAPS": 0x14, "SPACE": 0x20, "TAB": 0x09,
}

// ParseVK converts a binding token ("RMB", "F3", "R", "4") into a Windows
// virtual-key code. It recognizes mouse buttons, common modifiers, F1..F12,
// letters and digits. ok is false for unknown tokens.
func ParseVK(key string) (byte, bool) {
	k := strings.ToUpper(strings.TrimSpace(key))
	if vk, ok := namedKeys[k]; ok {
		return vk, true
	}
	if len(k) >= 2 && len(k) <= 3 && k[0] == 'F' {
		n := 0
		for _, c := range k[1:] {
			if c < '0' || c > '9' {
				return 0, false
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 12 {
			return byte(0x70 + n - 1), true // VK_F1=0x70
		}
		return 0, false
	}
	if len(k) == 1 && (k[0] >= 'A' && k[0] <= 'Z' || k[0] >= '0' && k[0] <= '9') {
		return k[0], true // letters and digits match their VK codes
	}
	return 0, false
}

// LogSink records commands instead of injecting them. It backs dry-run mode
// and platforms without an injection backend.
type LogSink struct {
	Logger *slog.Logger

	moves  atomic.Uint64
	clicks atomic.Uint64
}

func (s *LogSink) Move(dx, dy int) error {
	s.moves.Add(1)
	if s.Logger != nil {
		s.Logger.Debug("action.move", "dx", dx, "dy", dy)
	}
	return nil
}

func (s *LogSink) Press() error {
	if s.Logger != nil {
		s.Logger.Debug("action.press")
	}
	return nil
}

func (s *LogSink) Release() error {
	s.clicks.Add(1)
	if s.Logger != nil {
		s.Logger.Debug("action.release")
	}
	return nil
}

func (s *LogSink) Click() error {
	if err := s.Press(); err != nil {
		return err
	}
	return s.Release()
}

// Counts returns how many moves and completed clicks were recorded.
func (s *LogSink) Counts() (moves, clicks uint64) { return s.moves.Load(), s.clicks.Load() }

// NoKeys reports every binding as released.
type NoKeys struct{}

func (NoKeys) Held(string) bool { return false }
