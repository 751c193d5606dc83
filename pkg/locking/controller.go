package locking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	errUtils "github.com/kopi-vm/kopi/errors"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
)

const (
	lockDirPerm      = 0o700
	waitNotifyPeriod = time.Second
)

// Controller acquires and releases scope locks under one kopi home. Handles
// acquired through the same controller are reentrant per scope.
type Controller struct {
	home      string
	lockRoot  string
	mode      Mode
	timeout   Resolution
	inspector FilesystemInspector
	observer  Observer
	backoff   Backoff
	registry  *registry
	// newResource builds the per-attempt lock resource for a backend.
	newResource func(Backend, string, Scope) lockResource

	downgradeOnce sync.Once
}

// Option customizes a Controller.
type Option func(*Controller)

// WithMode sets the backend selection mode.
func WithMode(mode Mode) Option {
	return func(c *Controller) {
		c.mode = mode
	}
}

// WithTimeout sets the default wait policy for acquisitions.
func WithTimeout(resolution Resolution) Option {
	return func(c *Controller) {
		c.timeout = resolution
	}
}

// WithInspector replaces the filesystem inspector used by auto mode.
func WithInspector(inspector FilesystemInspector) Option {
	return func(c *Controller) {
		c.inspector = inspector
	}
}

// WithObserver adds an observer notified for every acquisition.
func WithObserver(observer Observer) Option {
	return func(c *Controller) {
		c.observer = MultiObserver(c.observer, observer)
	}
}

// WithBackoff overrides the polling schedule.
func WithBackoff(backoff Backoff) Option {
	return func(c *Controller) {
		c.backoff = backoff
	}
}

// NewController returns a controller for locks under <kopiHome>/locks.
//
// Reentrancy is tracked per controller, not per process: a process must share one
// controller per kopi home. Two controllers in one process contend for a scope
// exactly like two processes do.
func NewController(kopiHome string, opts ...Option) *Controller {
	defer perf.Track(nil, "locking.NewController")()

	c := &Controller{
		home:      kopiHome,
		lockRoot:  LockRoot(kopiHome),
		mode:      ModeAuto,
		timeout:   DefaultResolution(),
		inspector: NewFilesystemInspector(),
		observer:  LogObserver{},
		backoff:   DefaultBackoff(),
		registry:  newRegistry(),

		newResource: newLockResource,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Home() string { return c.home }

func (c *Controller) LockRoot() string { return c.lockRoot }

func (c *Controller) Mode() Mode { return c.mode }

// Timeout is the default wait policy applied when an acquisition does not override it.
func (c *Controller) Timeout() Resolution { return c.timeout }

// AcquireOption customizes one acquisition.
type AcquireOption func(*acquireSettings)

type acquireSettings struct {
	timeout  Resolution
	observer Observer
}

// WithAcquireTimeout overrides the controller timeout for one acquisition.
func WithAcquireTimeout(resolution Resolution) AcquireOption {
	return func(s *acquireSettings) {
		s.timeout = resolution
	}
}

// WithAcquireObserver adds an observer for one acquisition.
func WithAcquireObserver(observer Observer) AcquireOption {
	return func(s *acquireSettings) {
		s.observer = MultiObserver(s.observer, observer)
	}
}

// Acquire blocks until scope is held, the timeout expires or ctx is done.
//
// A timeout returns an error matching ErrLockTimeout (errors.As yields *TimeoutError);
// cancellation returns one matching ErrLockCancelled.
func (c *Controller) Acquire(ctx context.Context, scope Scope, opts ...AcquireOption) (*Handle, error) {
	defer perf.Track(nil, "locking.Controller.Acquire")()

	h, _, err := c.acquire(ctx, scope, false, opts)
	return h, err
}

// TryAcquire makes a single attempt. It returns (nil, false, nil) when another holder has the scope.
func (c *Controller) TryAcquire(ctx context.Context, scope Scope, opts ...AcquireOption) (*Handle, bool, error) {
	defer perf.Track(nil, "locking.Controller.TryAcquire")()

	return c.acquire(ctx, scope, true, opts)
}

// Release releases handle. It is equivalent to handle.Release().
func (c *Controller) Release(handle *Handle) error {
	return handle.Release()
}

// HoldCount reports how many live handles this controller has for scope.
func (c *Controller) HoldCount(scope Scope) int {
	return c.registry.count(c.key(scope))
}

func (c *Controller) key(scope Scope) string {
	return filepath.Clean(scope.LockPath(c.lockRoot))
}

func (c *Controller) acquire(ctx context.Context, scope Scope, nonBlocking bool, opts []AcquireOption) (*Handle, bool, error) {
	settings := acquireSettings{timeout: c.timeout, observer: c.observer}
	for _, opt := range opts {
		opt(&settings)
	}
	observer := settings.observer
	timeout := settings.timeout.Timeout

	lockPath := scope.LockPath(c.lockRoot)
	key := filepath.Clean(lockPath)

	if held, ok := c.registry.join(key); ok {
		log.Trace("Reentered held lock", "scope", scope.Label())
		return newHandle(c.registry, key, held), true, nil
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), lockDirPerm); err != nil {
		return nil, false, errUtils.Build(errUtils.ErrLockAcquire).
			WithCause(err).
			WithExplanationf("Could not create lock directory %s", filepath.Dir(lockPath)).
			WithContext("scope", scope.Label()).
			Err()
	}

	backend := c.selectBackend(filepath.Dir(lockPath), scope)
	resource := c.newResource(backend, lockPath, scope)

	start := time.Now()
	event := func(kind EventKind, attempt int) Event {
		e := Event{
			Kind:    kind,
			Scope:   scope,
			Backend: resource.backend(),
			Elapsed: time.Since(start),
			Attempt: attempt,
			Timeout: settings.timeout,
		}
		if !timeout.IsInfinite() {
			e.HasDeadline = true
			e.Remaining = max(timeout.Duration()-e.Elapsed, 0)
		}
		return e
	}

	observer.Observe(event(EventAcquireStart, 0))

	attempt := 0
	var lastNotified time.Time
	for {
		if ctx.Err() != nil {
			observer.Observe(event(EventCancelled, attempt))
			return nil, false, newCancelledError(scope, time.Since(start))
		}

		held, ok, err := c.registry.claim(key, resource, scope)
		if err != nil {
			if errors.Is(err, errUtils.ErrAdvisoryUnsupported) && resource.backend() == BackendAdvisory {
				log.Warn("Advisory locks are not supported here; switching to fallback locking",
					"scope", scope.Label(), "path", lockPath, "error", err)
				resource = c.newResource(BackendFallback, lockPath, scope)
				continue
			}
			return nil, false, err
		}
		if ok {
			observer.Observe(event(EventAcquired, attempt))
			return newHandle(c.registry, key, held), true, nil
		}

		if nonBlocking {
			return nil, false, nil
		}

		elapsed := time.Since(start)
		if timeout.IsNoWait() || (!timeout.IsInfinite() && elapsed >= timeout.Duration()) {
			observer.Observe(event(EventTimedOut, attempt))
			return nil, false, newTimeoutError(scope, resource.backend(), elapsed, settings.timeout)
		}

		attempt++
		if attempt == 1 || time.Since(lastNotified) >= waitNotifyPeriod {
			lastNotified = time.Now()
			observer.Observe(event(EventWaiting, attempt))
		}

		remaining := timeout.Duration() - elapsed
		timer := time.NewTimer(c.backoff.delay(attempt, remaining, !timeout.IsInfinite()))
		select {
		case <-ctx.Done():
			timer.Stop()
			observer.Observe(event(EventCancelled, attempt))
			return nil, false, newCancelledError(scope, time.Since(start))
		case <-timer.C:
		}
	}
}

// selectBackend picks the backend for a lock directory according to the mode.
func (c *Controller) selectBackend(dir string, scope Scope) Backend {
	switch c.mode {
	case ModeAdvisory:
		return BackendAdvisory
	case ModeFallback:
		return BackendFallback
	}

	info, err := c.inspector.Classify(dir)
	if err != nil {
		log.Warn("Could not detect filesystem type; using fallback locking",
			"path", dir, "scope", scope.Label(), "error", err)
		return BackendFallback
	}

	backend := routeBackend(info)
	log.Debug("Selected lock backend", "scope", scope.Label(), "filesystem", info.Name, "backend", backend.String())
	if backend == BackendFallback {
		c.downgradeOnce.Do(func() {
			log.Info("Using fallback locking because the filesystem does not support reliable advisory locks",
				"filesystem", info.Name, "network", info.Network, "path", dir)
		})
	}
	return backend
}
