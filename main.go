package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kopi-vm/kopi/cmd"
	errUtils "github.com/kopi-vm/kopi/errors"
	log "github.com/kopi-vm/kopi/pkg/logger"
)

func main() {
	// Use errUtils.OsExit to allow test interception.
	errUtils.OsExit(run())
}

// run executes the CLI and returns the process exit code. Deferred cleanup runs
// before main exits.
func run() int {
	// SIGINT and SIGTERM cancel the context, which aborts any lock wait and
	// surfaces as a cancellation error with its own exit code.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer errUtils.CloseSentry()

	log.Default().SetReportTimestamp(false)

	err := cmd.Execute(ctx)

	// --verbose and --color are only known once the flags have been parsed.
	config := errUtils.DefaultFormatterConfig()
	config.Verbose = cmd.Verbose()
	config.Color = cmd.ColorMode()
	return errUtils.Report(os.Stderr, err, config)
}
