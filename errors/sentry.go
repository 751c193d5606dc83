package errors

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/getsentry/sentry-go"

	"github.com/kopi-vm/kopi/pkg/schema"
)

// CloseSentryTimeout bounds how long pending events are flushed on exit.
const CloseSentryTimeout = 2 * time.Second

var sentryEnabled atomic.Bool

// InitializeSentry enables crash reporting when configured. A nil or disabled config is a no-op.
func InitializeSentry(config *schema.SentryConfig) error {
	if config == nil || !config.Enabled {
		return nil
	}

	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Debug:            config.Debug,
		SampleRate:       sampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	sentryEnabled.Store(true)
	return nil
}

// CloseSentry flushes pending events.
func CloseSentry() {
	if !sentryEnabled.Load() {
		return
	}
	sentry.Flush(CloseSentryTimeout)
}

// CaptureError reports err using the PII-free report built by cockroachdb/errors.
// Cancelled lock waits are user actions and are never reported.
func CaptureError(err error) {
	if err == nil || !sentryEnabled.Load() || errors.Is(err, ErrLockCancelled) {
		return
	}

	event, extraDetails := errors.BuildSentryReport(err)
	hub := sentry.CurrentHub()

	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extraDetails {
			if contextMap, ok := value.(map[string]interface{}); ok {
				scope.SetContext(key, contextMap)
			}
		}

		for _, hint := range errors.GetAllHints(err) {
			scope.AddBreadcrumb(&sentry.Breadcrumb{
				Type:     "info",
				Category: "hint",
				Message:  hint,
				Level:    sentry.LevelInfo,
			}, 100)
		}

		if exitCode := GetExitCode(err); exitCode != ExitCodeGeneral {
			if event.Tags == nil {
				event.Tags = map[string]string{}
			}
			event.Tags["kopi.exit_code"] = fmt.Sprintf("%d", exitCode)
		}

		hub.CaptureEvent(event)
	})
}
