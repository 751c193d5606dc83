package locking

import (
	"os"

	"github.com/gofrs/flock"

	errUtils "github.com/kopi-vm/kopi/errors"
)

const lockFilePerm = 0o600

// advisoryLock holds an exclusive OS advisory lock on the lock file. The kernel
// drops it when the process exits, so it never goes stale.
type advisoryLock struct {
	lock *flock.Flock
}

func newAdvisoryLock(lockPath string) *advisoryLock {
	return &advisoryLock{
		lock: flock.New(lockPath,
			flock.SetFlag(os.O_CREATE|os.O_RDWR),
			flock.SetPermissions(lockFilePerm)),
	}
}

func (a *advisoryLock) tryLock() (bool, error) {
	locked, err := a.lock.TryLock()
	if err != nil {
		if isUnsupportedLockError(err) {
			return false, errUtils.Build(errUtils.ErrAdvisoryUnsupported).
				WithCause(err).
				WithContext("path", a.lock.Path()).
				Err()
		}
		return false, errUtils.Build(errUtils.ErrLockAcquire).
			WithCause(err).
			WithContext("path", a.lock.Path()).
			Err()
	}
	return locked, nil
}

// unlock releases the lock. The lock file stays on disk for reuse.
func (a *advisoryLock) unlock() error {
	if err := a.lock.Unlock(); err != nil {
		return errUtils.Build(errUtils.ErrLockRelease).
			WithCause(err).
			WithContext("path", a.lock.Path()).
			Err()
	}
	return nil
}

func (a *advisoryLock) backend() Backend { return BackendAdvisory }

func (a *advisoryLock) path() string { return a.lock.Path() }
