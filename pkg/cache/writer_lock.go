package cache

import (
	"context"
	"errors"

	"github.com/kopi-vm/kopi/pkg/locking"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
)

// Locker acquires scope locks. *locking.Controller implements it.
type Locker interface {
	Acquire(ctx context.Context, scope locking.Scope, opts ...locking.AcquireOption) (*locking.Handle, error)
}

// writerLock serializes cache writers across processes through the cache writer scope.
type writerLock struct {
	locker Locker
}

func newWriterLock(locker Locker) *writerLock {
	return &writerLock{locker: locker}
}

// withLock executes fn while holding the cache writer lock. Acquisition errors
// (timeout, cancellation) are returned unchanged so their exit codes survive. A
// release failure is joined to fn's result.
func (w *writerLock) withLock(ctx context.Context, fn func() error) (err error) {
	defer perf.Track(nil, "cache.writerLock.withLock")()

	handle, err := w.locker.Acquire(ctx, locking.CacheWriterScope())
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := handle.Release(); releaseErr != nil {
			log.Warn("Failed to release cache writer lock", "path", handle.Path(), "error", releaseErr)
			err = errors.Join(err, releaseErr)
		}
	}()

	return fn()
}
