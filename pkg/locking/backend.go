package locking

// lockResource is one backend's hold on a lock path.
type lockResource interface {
	// tryLock makes a single non-blocking attempt. false without error means contended.
	tryLock() (bool, error)
	unlock() error
	backend() Backend
	path() string
}

func newLockResource(b Backend, lockPath string, scope Scope) lockResource {
	if b == BackendFallback {
		return newFallbackLock(lockPath, scope)
	}
	return newAdvisoryLock(lockPath)
}
