// Package retry re-runs failing operations with a configurable backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/pkg/schema"
)

// Func is one attempt of a retried operation.
type Func func() error

// Executor runs a Func until it succeeds or the config gives up.
type Executor struct {
	config schema.RetryConfig
	rand   *rand.Rand
}

// New returns an executor for config. Zero fields take their defaults.
func New(config schema.RetryConfig) *Executor {
	defer perf.Track(nil, "retry.New")()

	return &Executor{
		config: withDefaults(config),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// MaxElapsedTimeError is returned when the retry budget runs out before an attempt succeeds.
type MaxElapsedTimeError struct {
	MaxElapsedTime time.Duration
	Last           error
}

func (e MaxElapsedTimeError) Error() string {
	return fmt.Sprintf("retry timeout exceeded after %v: %v", e.MaxElapsedTime, e.Last)
}

func (e MaxElapsedTimeError) Unwrap() error {
	return e.Last
}

// ErrMaxAttempts wraps the last error once every attempt has failed.
var ErrMaxAttempts = errors.New("max attempts exceeded")

// Execute retries fn on any error.
func (e *Executor) Execute(ctx context.Context, fn Func) error {
	return e.ExecuteWithPredicate(ctx, fn, RetryOnAnyError)
}

// ExecuteWithPredicate retries fn while shouldRetry accepts the error.
func (e *Executor) ExecuteWithPredicate(ctx context.Context, fn Func, shouldRetry func(error) bool) error {
	defer perf.Track(nil, "retry.Executor.ExecuteWithPredicate")()

	start := time.Now()
	var last error
	for attempt := 1; ; attempt++ {
		if last != nil && time.Since(start) > e.config.MaxElapsedTime {
			return MaxElapsedTimeError{MaxElapsedTime: e.config.MaxElapsedTime, Last: last}
		}

		last = fn()
		if last == nil {
			return nil
		}
		if !shouldRetry(last) {
			return last
		}
		if attempt >= e.config.MaxAttempts {
			return fmt.Errorf("%w (%d): %w", ErrMaxAttempts, e.config.MaxAttempts, last)
		}

		delay := e.calculateDelay(attempt)
		log.Debug("Retrying after failure", "attempt", attempt, "delay", delay, "error", last)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), last)
		case <-timer.C:
		}
	}
}

const jitterFlipChance = 0.5

// calculateDelay returns the wait before attempt+1.
func (e *Executor) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch e.config.BackoffStrategy {
	case schema.BackoffLinear:
		delay = time.Duration(float64(e.config.InitialDelay) * float64(attempt))
	case schema.BackoffExponential:
		delay = time.Duration(float64(e.config.InitialDelay) * math.Pow(e.config.Multiplier, float64(attempt-1)))
	default:
		delay = e.config.InitialDelay
	}

	if delay > e.config.MaxDelay {
		delay = e.config.MaxDelay
	}

	// 10% jitter in either direction.
	if e.config.RandomJitter {
		jitter := time.Duration(e.rand.Float64() * float64(delay) * 0.1)
		if e.rand.Float64() < jitterFlipChance {
			delay += jitter
		} else {
			delay -= jitter
		}
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// Do runs fn with config, or DefaultConfig when config is nil.
func Do(ctx context.Context, config *schema.RetryConfig, fn Func) error {
	return WithPredicate(ctx, config, fn, RetryOnAnyError)
}

// WithPredicate limits retries to errors accepted by shouldRetry.
func WithPredicate(ctx context.Context, config *schema.RetryConfig, fn Func, shouldRetry func(error) bool) error {
	if config == nil {
		temp := DefaultConfig()
		config = &temp
	}
	return New(*config).ExecuteWithPredicate(ctx, fn, shouldRetry)
}

const (
	defaultMaxAttempts    = 3
	defaultInitialDelay   = 500 * time.Millisecond
	defaultMaxDelay       = 10 * time.Second
	defaultMultiplier     = 2.0
	defaultMaxElapsedTime = 10 * time.Minute
)

// DefaultConfig returns the download retry policy.
func DefaultConfig() schema.RetryConfig {
	return schema.RetryConfig{
		MaxAttempts:     defaultMaxAttempts,
		BackoffStrategy: schema.BackoffExponential,
		InitialDelay:    defaultInitialDelay,
		MaxDelay:        defaultMaxDelay,
		RandomJitter:    true,
		Multiplier:      defaultMultiplier,
		MaxElapsedTime:  defaultMaxElapsedTime,
	}
}

func withDefaults(c schema.RetryConfig) schema.RetryConfig {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BackoffStrategy == "" {
		c.BackoffStrategy = d.BackoffStrategy
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.MaxElapsedTime <= 0 {
		c.MaxElapsedTime = d.MaxElapsedTime
	}
	return c
}

// RetryOnAnyError retries every failure.
var RetryOnAnyError = func(error) bool { return true }
