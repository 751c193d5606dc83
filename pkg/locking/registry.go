package locking

import (
	"sync"
	"time"
)

// heldLock is one OS-level hold shared by every reentrant handle in this process.
type heldLock struct {
	resource   lockResource
	scope      Scope
	count      int
	acquiredAt time.Time
}

// registry tracks locks held by one controller, keyed by canonical lock path.
// It is the process-wide registry as long as the process uses a single controller.
type registry struct {
	mu    sync.Mutex
	locks map[string]*heldLock
}

func newRegistry() *registry {
	return &registry{locks: make(map[string]*heldLock)}
}

// join bumps the count of an already held lock.
func (r *registry) join(key string) (*heldLock, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	held, ok := r.locks[key]
	if !ok {
		return nil, false
	}
	held.count++
	return held, true
}

// claim joins an existing hold or makes one attempt on resource, atomically with
// respect to other goroutines of this process.
func (r *registry) claim(key string, resource lockResource, scope Scope) (*heldLock, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.locks[key]; ok {
		held.count++
		return held, true, nil
	}

	locked, err := resource.tryLock()
	if err != nil || !locked {
		return nil, false, err
	}

	held := &heldLock{resource: resource, scope: scope, count: 1, acquiredAt: time.Now()}
	r.locks[key] = held
	return held, true, nil
}

// release drops one reference and unlocks when the last one goes.
func (r *registry) release(key string) (released bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	held, ok := r.locks[key]
	if !ok {
		return false, nil
	}
	held.count--
	if held.count > 0 {
		return false, nil
	}
	delete(r.locks, key)
	return true, held.resource.unlock()
}

// count returns the live reference count for key.
func (r *registry) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.locks[key]; ok {
		return held.count
	}
	return 0
}
