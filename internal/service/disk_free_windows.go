//go:build windows

package service

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// freeDiskSpace returns the bytes available to the caller on the volume
// holding dir.
func freeDiskSpace(dir string) (int64, error) {
	ptr, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, err
	}

	var freeBytes, totalBytes, totalFreeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeBytes, &totalBytes, &totalFreeBytes); err != nil {
		return 0, fmt.Errorf("GetDiskFreeSpaceEx %s: %w", dir, err)
	}
	return int64(freeBytes), nil
}
