package locking

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kopi-vm/kopi/pkg/duration"
	log "github.com/kopi-vm/kopi/pkg/logger"
)

// EventKind enumerates the lifecycle events of one acquisition.
type EventKind int

const (
	EventAcquireStart EventKind = iota + 1
	EventWaiting
	EventAcquired
	EventTimedOut
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventAcquireStart:
		return "acquire-start"
	case EventWaiting:
		return "waiting"
	case EventAcquired:
		return "acquired"
	case EventTimedOut:
		return "timed-out"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event is delivered to observers during an acquisition.
//
// Remaining is only meaningful for finite timeouts; HasDeadline says whether it is set.
type Event struct {
	Kind        EventKind
	Scope       Scope
	Backend     Backend
	Elapsed     time.Duration
	Remaining   time.Duration
	HasDeadline bool
	Attempt     int
	Timeout     Resolution
}

// Observer receives acquisition events. Implementations must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type noopObserver struct{}

func (noopObserver) Observe(Event) {}

// MultiObserver fans events out to every non-nil observer in order.
func MultiObserver(observers ...Observer) Observer {
	var active []Observer
	for _, o := range observers {
		if o != nil {
			active = append(active, o)
		}
	}
	switch len(active) {
	case 0:
		return noopObserver{}
	case 1:
		return active[0]
	default:
		return multiObserver(active)
	}
}

type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// LogObserver writes every event to the structured logger.
type LogObserver struct{}

func (LogObserver) Observe(e Event) {
	keyvals := []interface{}{
		"scope", e.Scope.Label(),
		"backend", e.Backend.String(),
		"elapsed", duration.Format(e.Elapsed),
	}
	switch e.Kind {
	case EventAcquireStart:
		log.Debug("Acquiring lock", "scope", e.Scope.Label(), "backend", e.Backend.String(),
			"timeout", e.Timeout.Timeout.String(), "source", e.Timeout.Source.String())
	case EventWaiting:
		log.Debug("Waiting for lock", append(keyvals, "attempt", e.Attempt)...)
	case EventAcquired:
		log.Debug("Acquired lock", keyvals...)
	case EventTimedOut:
		log.Debug("Timed out waiting for lock", append(keyvals, "timeout", e.Timeout.Timeout.String())...)
	case EventCancelled:
		log.Debug("Cancelled lock wait", keyvals...)
	}
}

// StatusObserver writes plain-text progress lines for a human, only once contention is seen.
type StatusObserver struct {
	w io.Writer

	mu       sync.Mutex
	notified bool
}

// NewStatusObserver writes status lines to w.
func NewStatusObserver(w io.Writer) *StatusObserver {
	return &StatusObserver{w: w}
}

func (s *StatusObserver) Observe(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := e.Scope.Label()
	switch e.Kind {
	case EventAcquireStart:
		s.notified = false
	case EventWaiting:
		if !s.notified {
			s.notified = true
			s.printf("Waiting for %s lock (timeout %s, source %s). Press Ctrl-C to cancel.",
				label, e.Timeout.Timeout, e.Timeout.Source)
			return
		}
		remaining := ""
		if e.HasDeadline {
			remaining = fmt.Sprintf(" (~%s remaining)", duration.Format(e.Remaining))
		}
		s.printf("Still waiting for %s lock after %s%s", label, duration.Format(e.Elapsed), remaining)
	case EventAcquired:
		if s.notified {
			s.printf("Acquired %s lock after %s", label, duration.Format(e.Elapsed))
		}
	case EventTimedOut:
		s.printf("Timed out waiting for %s lock after %s", label, duration.Format(e.Elapsed))
	case EventCancelled:
		s.printf("Cancelled while waiting for %s lock after %s", label, duration.Format(e.Elapsed))
	}
}

func (s *StatusObserver) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.w, format+"\n", args...)
}
