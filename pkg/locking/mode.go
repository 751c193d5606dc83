package locking

import (
	"strings"

	errUtils "github.com/kopi-vm/kopi/errors"
)

// Mode selects how the controller picks a backend.
type Mode string

const (
	// ModeAuto inspects the filesystem of the lock directory.
	ModeAuto Mode = "auto"
	// ModeAdvisory forces OS advisory locks.
	ModeAdvisory Mode = "advisory"
	// ModeFallback forces atomic marker files.
	ModeFallback Mode = "fallback"
)

// ParseMode parses a mode name case-insensitively. Empty means auto.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeAdvisory:
		return ModeAdvisory, nil
	case ModeFallback:
		return ModeFallback, nil
	default:
		return ModeAuto, errUtils.Build(errUtils.ErrInvalidLockMode).
			WithExplanationf("Lock mode %q is not recognized", value).
			WithHint("Use one of: auto, advisory, fallback").
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}
}

// Backend is the concrete locking strategy used for one acquisition.
type Backend int

const (
	// BackendAdvisory uses kernel advisory locks, released automatically on process exit.
	BackendAdvisory Backend = iota + 1
	// BackendFallback uses exclusively created marker files that outlive their creator.
	BackendFallback
)

func (b Backend) String() string {
	switch b {
	case BackendAdvisory:
		return "advisory"
	case BackendFallback:
		return "fallback"
	default:
		return "unknown"
	}
}
