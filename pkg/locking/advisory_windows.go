//go:build windows

package locking

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isUnsupportedLockError reports errors meaning the share cannot hold byte-range locks.
func isUnsupportedLockError(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SUPPORTED) ||
		errors.Is(err, windows.ERROR_INVALID_FUNCTION)
}
