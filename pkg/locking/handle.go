package locking

import (
	"runtime"
	"sync/atomic"
	"time"

	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
)

// Handle is proof of holding a scope. Release it exactly when the guarded work is done;
// Release and Close are idempotent.
type Handle struct {
	state   *handleState
	cleanup runtime.Cleanup
}

type handleState struct {
	registry   *registry
	key        string
	scope      Scope
	backend    Backend
	path       string
	acquiredAt time.Time
	released   atomic.Bool
}

func newHandle(reg *registry, key string, held *heldLock) *Handle {
	state := &handleState{
		registry:   reg,
		key:        key,
		scope:      held.scope,
		backend:    held.resource.backend(),
		path:       held.resource.path(),
		acquiredAt: time.Now(),
	}
	h := &Handle{state: state}
	h.cleanup = runtime.AddCleanup(h, releaseLeaked, state)
	return h
}

// releaseLeaked runs when a handle is garbage collected without Release.
func releaseLeaked(state *handleState) {
	if state.released.Load() {
		return
	}
	log.Warn("Lock handle was never released; releasing it now",
		"scope", state.scope.Label(), "path", state.path)
	if err := state.release(); err != nil {
		log.Warn("Failed to release leaked lock", "scope", state.scope.Label(), "error", err)
	}
}

func (s *handleState) release() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	unlocked, err := s.registry.release(s.key)
	if err != nil {
		return err
	}
	if unlocked {
		log.Debug("Released lock", "scope", s.scope.Label(), "backend", s.backend.String(),
			"held", time.Since(s.acquiredAt).Round(time.Millisecond))
	}
	return nil
}

// Release gives up this handle's hold. The underlying lock is unlocked when the
// last reentrant handle is released.
func (h *Handle) Release() error {
	defer perf.Track(nil, "locking.Handle.Release")()

	if h == nil || h.state == nil {
		return nil
	}
	if h.state.released.Load() {
		return nil
	}
	h.cleanup.Stop()
	return h.state.release()
}

// Close implements io.Closer.
func (h *Handle) Close() error {
	return h.Release()
}

func (h *Handle) Scope() Scope { return h.state.scope }

func (h *Handle) Backend() Backend { return h.state.backend }

// Path is the file backing this hold: the lock file for advisory locks, the marker for fallback.
func (h *Handle) Path() string { return h.state.path }

func (h *Handle) Released() bool { return h.state.released.Load() }

func (h *Handle) AcquiredAt() time.Time { return h.state.acquiredAt }
