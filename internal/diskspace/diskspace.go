// Package diskspace answers whether a filesystem has room for an operation
// before it starts, so exports fail with a clear message instead of half a
// staged archive.
package diskspace

import (
	"errors"
	"fmt"
)

// InsufficientSpaceError reports a preflight check that found too little
// room. RequiredBytes already includes the safety margin.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("not enough disk space for %s: need %.1f MB, %.1f MB available",
		e.Path, requiredMB, availableMB)
}

// IsInsufficientSpaceError reports whether err is a space preflight failure.
func IsInsufficientSpaceError(err error) bool {
	var ise *InsufficientSpaceError
	return errors.As(err, &ise)
}

// checkAgainst applies the margin and builds the error. availableBytes of
// zero means the filesystem could not be inspected; the operation is allowed
// to proceed and fail naturally, which covers network and virtual mounts.
func checkAgainst(targetPath string, requiredBytes int64, safetyMargin float64, availableBytes int64) error {
	if availableBytes == 0 {
		return nil
	}
	required := int64(float64(requiredBytes) * safetyMargin)
	if availableBytes < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: availableBytes,
		}
	}
	return nil
}
