//go:build windows

package debug

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// psapiCounters is PROCESS_MEMORY_COUNTERS.
type psapiCounters struct {
	cb                         uint32
	PageFaultCount             uint32
	PeakWorkingSetSize         uintptr
	WorkingSetSize             uintptr
	QuotaPeakPagedPoolUsage    uintptr
	QuotaPagedPoolUsage        uintptr
	QuotaPeakNonPagedPoolUsage uintptr
	QuotaNonPagedPoolUsage     uintptr
	PagefileUsage              uintptr
	PeakPagefileUsage          uintptr
}

var (
	modPsapi                 = windows.NewLazySystemDLL("psapi.dll")
	procGetProcessMemoryInfo = modPsapi.NewProc("GetProcessMemoryInfo")
)

// processMemory reads the working set and commit charge of this process.
// DXGI staging textures and OpenCV blobs show up here but not in the Go heap.
func processMemory() (procMem, error) {
	c := psapiCounters{cb: uint32(unsafe.Sizeof(psapiCounters{}))}
	r1, _, err := procGetProcessMemoryInfo.Call(uintptr(windows.CurrentProcess()), uintptr(unsafe.Pointer(&c)), uintptr(c.cb))
	if r1 == 0 {
		return procMem{}, fmt.Errorf("debug: GetProcessMemoryInfo: %w", err)
	}
	return procMem{
		RSS:      uint64(c.WorkingSetSize),
		PeakRSS:  uint64(c.PeakWorkingSetSize),
		Pagefile: uint64(c.PagefileUsage),
	}, nil
}
