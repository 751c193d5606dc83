package errors

import (
	"io"
	"os"

	log "github.com/kopi-vm/kopi/pkg/logger"
)

// OsExit is a variable for testing, so we can mock os.Exit.
var OsExit = os.Exit

// Report sends err to Sentry when enabled, writes it to w and returns the exit code the
// process should end with. A nil err reports nothing and returns 0.
func Report(w io.Writer, err error, config FormatterConfig) int {
	if err == nil {
		return 0
	}

	CaptureError(err)

	if _, writeErr := io.WriteString(w, Format(err, config)+"\n"); writeErr != nil {
		log.Error("Failed to print error", "error", writeErr, "cause", err)
	}

	code := GetExitCode(err)
	log.Debug("Exiting with exit code", "code", code)
	return code
}
