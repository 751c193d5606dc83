package errors

import (
	"os/exec"

	"github.com/cockroachdb/errors"
)

// Process exit codes.
const (
	// ExitCodeGeneral covers every failure without a dedicated code, including lock timeouts.
	ExitCodeGeneral = 1
	// ExitCodeUsage is returned for invalid arguments or configuration values.
	ExitCodeUsage = 2
	// ExitCodeVerification is returned when a staged install fails checksum or smoke checks.
	ExitCodeVerification = 3
	// ExitCodeLockCancelled is returned when the user interrupts a lock wait (EX_TEMPFAIL).
	ExitCodeLockCancelled = 75
)

// sentinelExitCodes apply when no code was attached explicitly. Order matters: the
// first sentinel found in the chain wins.
var sentinelExitCodes = []struct {
	sentinel error
	code     int
}{
	{ErrLockCancelled, ExitCodeLockCancelled},
	{ErrVerification, ExitCodeVerification},
	{ErrChecksumMismatch, ExitCodeVerification},
	{ErrSmokeTestFailed, ExitCodeVerification},
	{ErrInvalidLockTimeout, ExitCodeUsage},
	{ErrInvalidLockMode, ExitCodeUsage},
	{ErrInvalidPackageSpec, ExitCodeUsage},
	{ErrUnknownConfigKey, ExitCodeUsage},
}

// codedError carries an explicit exit code for the error it wraps.
type codedError struct {
	cause error
	code  int
}

func (e *codedError) Error() string { return e.cause.Error() }

func (e *codedError) Cause() error { return e.cause }

func (e *codedError) Unwrap() error { return e.cause }

// WithExitCode attaches an exit code to err. The outermost code wins.
func WithExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &codedError{cause: err, code: code}
}

// GetExitCode picks the process exit code for err: 0 for nil, then an attached code,
// then the exit status of a failed child process, then the default for a known
// sentinel, and ExitCodeGeneral for everything else.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	for _, entry := range sentinelExitCodes {
		if errors.Is(err, entry.sentinel) {
			return entry.code
		}
	}
	return ExitCodeGeneral
}
