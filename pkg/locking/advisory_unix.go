//go:build !windows

package locking

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isUnsupportedLockError reports errors meaning the filesystem cannot hold advisory locks.
func isUnsupportedLockError(err error) bool {
	return errors.Is(err, unix.ENOTSUP) ||
		errors.Is(err, unix.EOPNOTSUPP) ||
		errors.Is(err, unix.ENOLCK)
}
