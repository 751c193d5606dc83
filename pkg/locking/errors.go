package locking

import (
	"fmt"
	"time"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/duration"
)

// TimeoutError reports a wait that ran out of budget. It matches ErrLockTimeout.
type TimeoutError struct {
	Scope   Scope
	Backend Backend
	Elapsed time.Duration
	Timeout Resolution
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s lock after %s (timeout %s from %s)",
		e.Scope.Label(), duration.Format(e.Elapsed), e.Timeout.Timeout, e.Timeout.Source)
}

// CancelledError reports a wait interrupted by the caller. It matches ErrLockCancelled.
type CancelledError struct {
	Scope   Scope
	Elapsed time.Duration
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled while waiting for %s lock after %s",
		e.Scope.Label(), duration.Format(e.Elapsed))
}

func newTimeoutError(scope Scope, backend Backend, elapsed time.Duration, timeout Resolution) error {
	b := errUtils.Build(&TimeoutError{Scope: scope, Backend: backend, Elapsed: elapsed, Timeout: timeout}).
		WithSentinel(errUtils.ErrLockTimeout).
		WithContext("scope", scope.Label()).
		WithContext("backend", backend.String()).
		WithContext("timeout", timeout.Timeout.String()).
		WithExitCode(errUtils.ExitCodeGeneral)
	if timeout.Timeout.IsNoWait() {
		b = b.WithHint("Another kopi process holds this lock; retry without --no-wait to wait for it")
	} else {
		b = b.WithHintf("Another kopi process holds this lock; raise the wait with %s or retry later",
			timeout.Source.Setting())
	}
	if backend == BackendFallback {
		b = b.WithHintf("If no kopi process is running, the holder may have crashed; run 'kopi locks sweep --older-than 1m' "+
			"to remove its marker now, since a plain sweep only removes markers older than %s", ConfigKeyStaleAfter)
	}
	return b.Err()
}

func newCancelledError(scope Scope, elapsed time.Duration) error {
	return errUtils.Build(&CancelledError{Scope: scope, Elapsed: elapsed}).
		WithSentinel(errUtils.ErrLockCancelled).
		WithContext("scope", scope.Label()).
		WithExitCode(errUtils.ExitCodeLockCancelled).
		Err()
}
