package locking

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/duration"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
)

const (
	// DefaultTimeout applies when no flag, environment variable or config value is set.
	DefaultTimeout = 600 * time.Second

	// EnvLockTimeout overrides locking.timeout.
	EnvLockTimeout = "KOPI_LOCK_TIMEOUT"
	// EnvLockMode overrides locking.mode.
	EnvLockMode = "KOPI_LOCK_MODE"

	// FlagLockTimeout is the CLI flag name for the timeout override.
	FlagLockTimeout = "lock-timeout"
	// ConfigKeyLockTimeout is the config key for the timeout.
	ConfigKeyLockTimeout = "locking.timeout"
	// ConfigKeyStaleAfter is the config key for the hygiene threshold.
	ConfigKeyStaleAfter = "locking.stale_after"

	infiniteKeyword  = "infinite"
	zeroUnits        = "smhd"
	longTimeoutLimit = time.Hour
)

// Timeout is a wait policy: no wait, a finite duration, or infinite.
type Timeout struct {
	d        time.Duration
	infinite bool
}

// NoWait fails immediately on contention.
func NoWait() Timeout {
	return Timeout{}
}

// Finite waits up to d. A non-positive d is NoWait.
func Finite(d time.Duration) Timeout {
	if d < 0 {
		d = 0
	}
	return Timeout{d: d}
}

// Infinite waits until the lock is free or the wait is cancelled.
func Infinite() Timeout {
	return Timeout{infinite: true}
}

func (t Timeout) IsNoWait() bool   { return !t.infinite && t.d == 0 }
func (t Timeout) IsInfinite() bool { return t.infinite }

// Duration is the finite wait, zero for NoWait and Infinite.
func (t Timeout) Duration() time.Duration {
	if t.infinite {
		return 0
	}
	return t.d
}

// String prints whole seconds as "600s" and anything finer as a Go duration.
func (t Timeout) String() string {
	if t.infinite {
		return infiniteKeyword
	}
	if t.d%time.Second != 0 {
		return t.d.String()
	}
	return fmt.Sprintf("%ds", int64(t.d/time.Second))
}

// Source records which input supplied the effective timeout.
type Source int

const (
	SourceDefault Source = iota
	SourceConfig
	SourceEnvironment
	SourceCLI
)

func (s Source) String() string {
	switch s {
	case SourceCLI:
		return "CLI flag"
	case SourceEnvironment:
		return "environment variable"
	case SourceConfig:
		return "configuration file"
	default:
		return "built-in default"
	}
}

// Setting names the concrete knob behind the source, for hints.
func (s Source) Setting() string {
	switch s {
	case SourceCLI:
		return "--" + FlagLockTimeout
	case SourceEnvironment:
		return EnvLockTimeout
	case SourceConfig:
		return ConfigKeyLockTimeout
	default:
		return "--" + FlagLockTimeout
	}
}

// Resolution is the effective timeout and where it came from.
type Resolution struct {
	Timeout Timeout
	Source  Source
}

// DefaultResolution is the built-in 600s timeout.
func DefaultResolution() Resolution {
	return Resolution{Timeout: Finite(DefaultTimeout), Source: SourceDefault}
}

// TimeoutInputs holds the raw timeout values. Empty strings mean "not set".
type TimeoutInputs struct {
	CLI    string
	Env    string
	Config string
}

// ParseTimeout accepts "infinite" (any case), integer seconds or a duration such as "5m".
// Zero in any unit means no wait.
func ParseTimeout(value string) (Timeout, error) {
	trimmed := strings.TrimSpace(value)
	if strings.EqualFold(trimmed, infiniteKeyword) {
		return Infinite(), nil
	}
	if isZeroTimeout(trimmed) {
		return NoWait(), nil
	}

	seconds, err := duration.Parse(trimmed)
	if err != nil {
		return Timeout{}, errUtils.Build(errUtils.ErrInvalidLockTimeout).
			WithCause(err).
			WithExplanationf("Lock timeout value '%s' is invalid", trimmed).
			WithHint("Use an integer number of seconds, a duration such as 5m, 0 for no wait, or the word 'infinite'").
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}
	return Finite(time.Duration(seconds) * time.Second), nil
}

// isZeroTimeout matches "0", "00", "0m", "0h0m" and the like.
func isZeroTimeout(value string) bool {
	if d, err := time.ParseDuration(value); err == nil {
		return d == 0 && !strings.HasPrefix(value, "-")
	}
	digits := value
	if n := len(digits); n > 1 && strings.ContainsRune(zeroUnits, rune(digits[n-1])) {
		digits = digits[:n-1]
	}
	return digits != "" && strings.Trim(digits, "0") == ""
}

// TimeoutResolver merges timeout inputs with strict precedence CLI > environment > config > default.
type TimeoutResolver struct {
	Default    Timeout
	warnedLong atomic.Bool
}

// NewTimeoutResolver returns a resolver with the built-in default.
func NewTimeoutResolver() *TimeoutResolver {
	return &TimeoutResolver{Default: Finite(DefaultTimeout)}
}

var processResolver = NewTimeoutResolver()

// ResolveTimeout resolves inputs with the process-wide resolver, so the long
// timeout advisory is logged at most once per process.
func ResolveTimeout(in TimeoutInputs) Resolution {
	return processResolver.Resolve(in)
}

// Resolve returns the first valid input by precedence. Invalid inputs are logged and skipped.
func (r *TimeoutResolver) Resolve(in TimeoutInputs) Resolution {
	defer perf.Track(nil, "locking.TimeoutResolver.Resolve")()

	candidates := []struct {
		value  string
		source Source
	}{
		{in.CLI, SourceCLI},
		{in.Env, SourceEnvironment},
		{in.Config, SourceConfig},
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate.value) == "" {
			continue
		}
		timeout, err := ParseTimeout(candidate.value)
		if err != nil {
			log.Warn("Ignoring invalid lock timeout",
				"value", candidate.value,
				"source", candidate.source.String(),
				"setting", candidate.source.Setting())
			continue
		}
		r.warnIfLong(timeout, candidate.source)
		return Resolution{Timeout: timeout, Source: candidate.source}
	}

	return Resolution{Timeout: r.Default, Source: SourceDefault}
}

func (r *TimeoutResolver) warnIfLong(timeout Timeout, source Source) {
	if timeout.IsInfinite() || timeout.Duration() <= longTimeoutLimit {
		return
	}
	if r.warnedLong.CompareAndSwap(false, true) {
		log.Warn("Lock timeout exceeds one hour; waits this long usually indicate a stuck process",
			"timeout", timeout.String(),
			"source", source.String())
	}
}
