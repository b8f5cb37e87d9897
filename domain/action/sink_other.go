//go:build !windows

package action

// NewPlatformSink returns a logging sink; there is no injection backend on
// this platform.
func NewPlatformSink() Sink { return &LogSink{} }

// NewPlatformKeys returns a key source that never reports a held binding.
func NewPlatformKeys() Keys { return NoKeys{} }
