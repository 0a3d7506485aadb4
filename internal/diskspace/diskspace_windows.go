//go:build windows

package diskspace

import (
	"path/filepath"
	"syscall"
	"unsafe"
)

var (
	kernel32            = syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceExW = kernel32.NewProc("GetDiskFreeSpaceExW")
)

// CheckAvailableSpace verifies the volume holding targetPath's directory can
// take requiredBytes scaled by safetyMargin. The target itself may not exist
// yet.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	return checkAgainst(targetPath, requiredBytes, safetyMargin, GetAvailableSpace(targetPath))
}

// GetAvailableSpace returns the bytes available to the calling user on the
// volume containing path, or 0 when it cannot be determined.
func GetAvailableSpace(path string) int64 {
	dir := filepath.Dir(path)
	dirPtr, err := syscall.UTF16PtrFromString(dir)
	if err != nil {
		return 0
	}
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	ret, _, _ := getDiskFreeSpaceExW.Call(
		uintptr(unsafe.Pointer(dirPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&totalFreeBytes)),
	)
	if ret == 0 {
		return 0
	}
	return int64(freeBytesAvailable)
}
