// Package perf records wall-clock timings of instrumented functions.
//
// Functions opt in with `defer perf.Track(cfg, "pkg.Func")()`. Tracking is a no-op
// until Enable is called, so the deferred call costs one atomic load in normal runs.
package perf

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/kopi-vm/kopi/pkg/schema"
)

const (
	minTrackableMicros = 1
	maxTrackableMicros = int64(time.Hour / time.Microsecond)
	significantFigures = 3
)

var (
	enabled atomic.Bool
	metrics = xsync.NewMapOf[string, *metric]()
)

type metric struct {
	mu    sync.Mutex
	hist  *hdrhistogram.Histogram
	total time.Duration
}

// Stat is a snapshot of one tracked function.
type Stat struct {
	Name  string
	Count int64
	Total time.Duration
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

// Enable turns tracking on or off.
func Enable(on bool) {
	enabled.Store(on)
}

// Enabled reports whether tracking is on.
func Enabled() bool {
	return enabled.Load()
}

// Track starts timing name and returns the function that stops it.
// The configuration argument is accepted for call-site symmetry and may be nil.
func Track(_ *schema.Configuration, name string) func() {
	if !enabled.Load() {
		return func() {}
	}

	start := time.Now()
	return func() {
		record(name, time.Since(start))
	}
}

func record(name string, elapsed time.Duration) {
	m, _ := metrics.LoadOrCompute(name, func() *metric {
		return &metric{hist: hdrhistogram.New(minTrackableMicros, maxTrackableMicros, significantFigures)}
	})

	micros := elapsed.Microseconds()
	if micros < minTrackableMicros {
		micros = minTrackableMicros
	}
	if micros > maxTrackableMicros {
		micros = maxTrackableMicros
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.hist.RecordValue(micros)
	m.total += elapsed
}

// Snapshot returns the tracked functions ordered by total time, largest first.
func Snapshot() []Stat {
	var stats []Stat
	metrics.Range(func(name string, m *metric) bool {
		m.mu.Lock()
		stats = append(stats, Stat{
			Name:  name,
			Count: m.hist.TotalCount(),
			Total: m.total,
			P50:   time.Duration(m.hist.ValueAtQuantile(50)) * time.Microsecond,
			P95:   time.Duration(m.hist.ValueAtQuantile(95)) * time.Microsecond,
			Max:   time.Duration(m.hist.Max()) * time.Microsecond,
		})
		m.mu.Unlock()
		return true
	})

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Total == stats[j].Total {
			return stats[i].Name < stats[j].Name
		}
		return stats[i].Total > stats[j].Total
	})
	return stats
}

// Reset drops all recorded timings.
func Reset() {
	metrics.Clear()
}
