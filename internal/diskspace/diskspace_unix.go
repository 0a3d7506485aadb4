//go:build !windows

package diskspace

import (
	"path/filepath"
	"syscall"
)

// CheckAvailableSpace verifies the filesystem holding targetPath's directory
// can take requiredBytes scaled by safetyMargin. The target itself may not
// exist yet.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	return checkAgainst(targetPath, requiredBytes, safetyMargin, GetAvailableSpace(targetPath))
}

// GetAvailableSpace returns the bytes available to unprivileged writers on
// the filesystem containing path, or 0 when it cannot be determined.
func GetAvailableSpace(path string) int64 {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(filepath.Dir(path), &stat); err != nil {
		return 0
	}
	// Bavail counts blocks available to non-root users.
	return int64(stat.Bavail) * int64(stat.Bsize)
}
