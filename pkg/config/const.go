package config

const (
	// FileName is the config file inside the kopi home.
	FileName = "config.toml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "KOPI"

	KeyLockingMode       = "locking.mode"
	KeyLockingTimeout    = "locking.timeout"
	KeyLockingStaleAfter = "locking.stale_after"
	KeyLogsLevel         = "logs.level"
	KeyLogsFile          = "logs.file"
	KeyCacheMaxAge       = "cache.max_age"
	KeySentryEnabled     = "errors.sentry.enabled"
	KeySentryDSN         = "errors.sentry.dsn"
	KeySentryEnvironment = "errors.sentry.environment"

	KeyDownloadTimeout     = "download.timeout"
	KeyDownloadMaxAttempts = "download.retry.max_attempts"

	// EnvLogLevel overrides logs.level.
	EnvLogLevel = "KOPI_LOG_LEVEL"

	DefaultLockingMode = "auto"
	DefaultLogsLevel   = "Info"
	DefaultCacheMaxAge = "720h"

	configFilePerm = 0o644
)
