package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kopi-vm/kopi/pkg/locking"
)

const (
	flagNoWait   = "no-wait"
	flagLockMode = "lock-mode"
	flagLogLevel = "log-level"
	flagVerbose  = "verbose"
	flagColor    = "color"

	// skipRuntimeAnnotation marks commands that run without a lock controller.
	skipRuntimeAnnotation = "kopi/skip-runtime"
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "kopi",
	Short: "JDK version manager",
	Long: `Kopi installs and manages JDKs under a single home directory (KOPI_HOME, default ~/.kopi).

Installs are staged and committed with one atomic rename. Concurrent kopi processes
coordinate through per-package installation locks and a cache writer lock.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupRuntime,
	PersistentPostRun: teardownRuntime,
}

// Execute runs the root command. ctx is cancelled on SIGINT/SIGTERM, which aborts
// any lock wait in progress.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

// Verbose reports whether --verbose was given, for error formatting in main.
func Verbose() bool {
	v, _ := RootCmd.PersistentFlags().GetBool(flagVerbose)
	return v
}

// ColorMode returns the --color setting for error formatting in main.
func ColorMode() string {
	mode, _ := RootCmd.PersistentFlags().GetString(flagColor)
	return mode
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.String(locking.FlagLockTimeout, "", "Seconds to wait for a lock (`0` fails immediately, `infinite` waits forever). Overrides "+locking.EnvLockTimeout+" and locking.timeout")
	pf.Bool(flagNoWait, false, "Fail immediately if a lock is held by another process (same as --lock-timeout 0)")
	pf.String(flagLockMode, "", "Locking backend: auto, advisory or fallback. Overrides "+locking.EnvLockMode+" and locking.mode. Processes sharing a home must use the same backend")
	pf.String(flagLogLevel, "", "Logs level. Supported log levels are Trace, Debug, Info, Warning, Off")
	pf.Bool(flagVerbose, false, "Show error context and stack traces")
	pf.String(flagColor, "auto", "Colorize output: auto, always or never")
}
