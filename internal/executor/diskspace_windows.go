// file: internal/executor/diskspace_windows.go

//go:build windows

package executor

import (
	"fmt"
	"syscall"
	"unsafe"
)

// freeBytes returns the free space available to an unprivileged user at
// path, used by stage 1's pre-flight check (spec §4.10).
func freeBytes(path string) (uint64, error) {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	proc := kernel32.NewProc("GetDiskFreeSpaceExW")
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0, fmt.Errorf("invalid path: %w", err)
	}
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	r1, _, e1 := proc.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&totalFreeBytes)),
	)
	if r1 == 0 {
		return 0, fmt.Errorf("GetDiskFreeSpaceExW failed: %w", e1)
	}
	return freeBytesAvailable, nil
}

// DiskFreeBytes exposes freeBytes for callers outside the package, such
// as the status API's device capacity report.
func DiskFreeBytes(path string) (uint64, error) {
	return freeBytes(path)
}
