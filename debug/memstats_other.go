//go:build !windows

package debug

import "runtime"

// processMemory approximates the resident set by the memory the Go runtime
// obtained from the OS.
func processMemory() (procMem, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return procMem{RSS: ms.Sys}, nil
}
