package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopi-vm/kopi/pkg/locking"
	"github.com/kopi-vm/kopi/pkg/perf"
)

func waitEvent(kind locking.EventKind, elapsed time.Duration) locking.Event {
	return locking.Event{
		Kind:        kind,
		Scope:       locking.CacheWriterScope(),
		Elapsed:     elapsed,
		Remaining:   10*time.Second - elapsed,
		HasDeadline: true,
		Timeout:     locking.Resolution{Timeout: locking.Finite(10 * time.Second), Source: locking.SourceCLI},
	}
}

func TestSpinnerObserver_ContendedWait(t *testing.T) {
	var out bytes.Buffer
	s := NewSpinnerObserver(&out, DefaultStyles(false))

	s.Observe(waitEvent(locking.EventAcquireStart, 0))
	s.Observe(waitEvent(locking.EventWaiting, 10*time.Millisecond))
	s.Observe(waitEvent(locking.EventWaiting, 1100*time.Millisecond))
	s.Observe(waitEvent(locking.EventAcquired, 1500*time.Millisecond))

	assert.Contains(t, out.String(), "✓ Acquired cache writer lock after 1.5s")
	assert.Nil(t, s.program)
}

func TestSpinnerObserver_UncontendedIsSilent(t *testing.T) {
	var out bytes.Buffer
	s := NewSpinnerObserver(&out, DefaultStyles(false))

	s.Observe(waitEvent(locking.EventAcquireStart, 0))
	s.Observe(waitEvent(locking.EventAcquired, time.Millisecond))

	assert.Empty(t, out.String())
}

func TestSpinnerObserver_TimedOutAndCancelled(t *testing.T) {
	var out bytes.Buffer
	s := NewSpinnerObserver(&out, DefaultStyles(false))

	s.Observe(waitEvent(locking.EventWaiting, 0))
	s.Observe(waitEvent(locking.EventTimedOut, 10*time.Second))
	assert.Contains(t, out.String(), "✗ Timed out waiting for cache writer lock after 10.0s")

	out.Reset()
	s.Observe(waitEvent(locking.EventCancelled, 200*time.Millisecond))
	assert.Equal(t, "! Cancelled while waiting for cache writer lock after 200ms\n", out.String())
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Cache Writer", Title("cache writer"))
	assert.Equal(t, "P95", Title("p95"))
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(DefaultStyles(false), []string{"slug", "version"}, [][]string{
		{"temurin-21-jdk-x64-linux", "21"},
	})

	assert.Contains(t, out, "Slug")
	assert.Contains(t, out, "Version")
	assert.Contains(t, out, "temurin-21-jdk-x64-linux")
}

func TestRenderPerfSummary(t *testing.T) {
	assert.Equal(t, "No timings recorded.", RenderPerfSummary(DefaultStyles(false), nil))

	out := RenderPerfSummary(DefaultStyles(false), []perf.Stat{
		{Name: "locking.Controller.Acquire", Count: 3, Total: 30 * time.Millisecond, P50: 10 * time.Millisecond},
	})
	require.NotEmpty(t, out)
	assert.Contains(t, out, "locking.Controller.Acquire")
	assert.Contains(t, out, "30ms")
}
