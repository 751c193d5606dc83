package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/config"
	"github.com/kopi-vm/kopi/pkg/locking"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/pkg/schema"
	"github.com/kopi-vm/kopi/pkg/ui"
	"github.com/kopi-vm/kopi/pkg/xdg"
	"github.com/kopi-vm/kopi/toolchain"
)

// kopiConfig is the configuration of the running command.
var kopiConfig *schema.Configuration

// kopiEnv is set for every command without skipRuntimeAnnotation.
var kopiEnv *toolchain.Environment

// logFile is closed by teardownRuntime when logs go to a regular file.
var logFile *os.File

func setupRuntime(cmd *cobra.Command, _ []string) error {
	defer perf.Track(nil, "cmd.setupRuntime")()

	home, err := xdg.KopiHome()
	if err != nil {
		return errUtils.Build(errUtils.ErrResolveHome).
			WithCause(err).
			WithHintf("Set %s to a writable directory", xdg.HomeEnvVar).
			Err()
	}

	cfg, err := config.Load(home, cmd.Flags())
	if err != nil {
		return err
	}
	kopiConfig = cfg

	if err := configureLogging(cfg); err != nil {
		return err
	}

	if err := errUtils.InitializeSentry(&cfg.Errors.Sentry); err != nil {
		log.Warn("Crash reporting disabled", "error", err)
	}

	if cmd.Annotations[skipRuntimeAnnotation] == "true" {
		return nil
	}

	controller, err := newController(cmd, cfg)
	if err != nil {
		return err
	}

	colorMode, _ := cmd.Flags().GetString(flagColor)
	kopiEnv = toolchain.NewEnvironment(cfg, controller, cmd.OutOrStdout(), ui.DefaultStyles(ui.UseColor(colorMode, os.Stdout)))

	report := kopiEnv.Sweep(cmd.Context())
	log.Debug("Startup hygiene finished",
		"markers", report.RemovedMarkers, "staging", report.RemovedStaging, "errors", report.Errors, "took", report.Duration)
	return nil
}

// newController resolves the lock mode, timeout and observer for this invocation.
func newController(cmd *cobra.Command, cfg *schema.Configuration) (*locking.Controller, error) {
	mode, err := locking.ParseMode(cfg.Locking.Mode)
	if err != nil {
		return nil, err
	}

	resolution := resolveTimeout(cmd, cfg)
	log.Debug("Lock settings", "mode", mode, "timeout", resolution.Timeout, "source", resolution.Source)

	colorMode, _ := cmd.Flags().GetString(flagColor)
	var observer locking.Observer = locking.NewStatusObserver(cmd.ErrOrStderr())
	if ui.IsTerminal(os.Stderr) && cmd.ErrOrStderr() == os.Stderr {
		observer = ui.NewSpinnerObserver(os.Stderr, ui.DefaultStyles(ui.UseColor(colorMode, os.Stderr)))
	}

	return locking.NewController(cfg.KopiHome,
		locking.WithMode(mode),
		locking.WithTimeout(resolution),
		locking.WithObserver(locking.MultiObserver(locking.LogObserver{}, observer)),
	), nil
}

// resolveTimeout applies --no-wait, then --lock-timeout, KOPI_LOCK_TIMEOUT and
// locking.timeout in that order. A malformed value at any level is logged and the
// next source is used.
func resolveTimeout(cmd *cobra.Command, cfg *schema.Configuration) locking.Resolution {
	flags := cmd.Flags()
	if noWait, _ := flags.GetBool(flagNoWait); noWait {
		return locking.Resolution{Timeout: locking.NoWait(), Source: locking.SourceCLI}
	}

	var cliValue string
	if flags.Changed(locking.FlagLockTimeout) {
		cliValue, _ = flags.GetString(locking.FlagLockTimeout)
	}
	return locking.ResolveTimeout(config.TimeoutInputs(cfg, cliValue))
}

func configureLogging(cfg *schema.Configuration) error {
	level, err := log.ParseLogLevel(cfg.Logs.Level)
	if err != nil {
		return errUtils.Build(err).
			WithHintf("Set --%s, %s or logs.level to one of Trace, Debug, Info, Warning, Off", flagLogLevel, config.EnvLogLevel).
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}

	w, err := openLogWriter(cfg.Logs.File)
	if err != nil {
		return errUtils.Build(errUtils.ErrLoadConfig).
			WithCause(err).
			WithExplanationf("Cannot open log file %s", cfg.Logs.File).
			WithHint("Set logs.file to a writable path, /dev/stderr or /dev/null").
			Err()
	}
	log.Default().Configure(level, w)
	perf.Enable(level == log.LogLevelTrace)
	return nil
}

const logFilePerm = 0o644

func openLogWriter(path string) (io.Writer, error) {
	switch path {
	case "", "/dev/stderr":
		return os.Stderr, nil
	case "/dev/stdout":
		return os.Stdout, nil
	case "/dev/null":
		return io.Discard, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return nil, err
	}
	logFile = f
	return f, nil
}

func teardownRuntime(cmd *cobra.Command, _ []string) {
	if perf.Enabled() {
		_, _ = io.WriteString(cmd.ErrOrStderr(), ui.RenderPerfSummary(ui.DefaultStyles(false), perf.Snapshot())+"\n")
	}
	if logFile != nil {
		log.Default().SetOutput(os.Stderr)
		_ = logFile.Close()
		logFile = nil
	}
}
