package errors

import (
	"errors"
)

// Locking errors.
var (
	ErrLockAcquire           = errors.New("failed to acquire lock")
	ErrLockTimeout           = errors.New("timed out waiting for lock")
	ErrLockCancelled         = errors.New("lock acquisition cancelled")
	ErrLockRelease           = errors.New("failed to release lock")
	ErrLockNotHeld           = errors.New("lock handle is not held")
	ErrFilesystemDetection   = errors.New("failed to detect filesystem type")
	ErrAdvisoryUnsupported   = errors.New("advisory locking is not supported on this filesystem")
	ErrInvalidLockTimeout    = errors.New("invalid lock timeout")
	ErrInvalidLockMode       = errors.New("invalid lock mode")
	ErrInvalidCoordinate     = errors.New("invalid package coordinate")
	ErrHygieneSweep          = errors.New("lock hygiene sweep failed")
	ErrFallbackMarkerCorrupt = errors.New("fallback marker is unreadable")
)

// Installation errors.
var (
	ErrStaging            = errors.New("failed to stage installation")
	ErrVerification       = errors.New("installation verification failed")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrSmokeTestFailed    = errors.New("smoke test failed")
	ErrCommitInstall      = errors.New("failed to commit installation")
	ErrNotInstalled       = errors.New("version is not installed")
	ErrUninstall          = errors.New("failed to uninstall")
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	ErrExtract            = errors.New("failed to extract archive")
	ErrIllegalPath        = errors.New("illegal path in archive")
	ErrArchiveTooLarge    = errors.New("archive entry exceeds size limit")
	ErrInvalidPackageSpec = errors.New("invalid package specification")
	ErrDownload           = errors.New("failed to download archive")
	ErrHTTPRequestFailed  = errors.New("HTTP request failed")
	ErrHTTP404            = errors.New("HTTP 404 Not Found")
	ErrPackageNotFound    = errors.New("package not found")
)

// Cache errors.
var (
	ErrCacheRead      = errors.New("cache read failed")
	ErrCacheWrite     = errors.New("cache write failed")
	ErrCacheUnmarshal = errors.New("cache unmarshal failed")
	ErrCacheMarshal   = errors.New("cache marshal failed")
)

// Configuration and duration errors.
var (
	ErrLoadConfig       = errors.New("failed to load configuration")
	ErrWriteConfig      = errors.New("failed to write configuration")
	ErrUnknownConfigKey = errors.New("unknown configuration key")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrResolveHome      = errors.New("failed to resolve kopi home directory")
)
