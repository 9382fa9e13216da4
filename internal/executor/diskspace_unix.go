// file: internal/executor/diskspace_unix.go

//go:build !windows

package executor

import "syscall"

// freeBytes returns the free space available to an unprivileged user at
// path, used by stage 1's pre-flight check (spec §4.10).
func freeBytes(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// DiskFreeBytes exposes freeBytes for callers outside the package, such
// as the status API's device capacity report.
func DiskFreeBytes(path string) (uint64, error) {
	return freeBytes(path)
}
