package toolchain

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/kopi-vm/kopi/pkg/cache"
	"github.com/kopi-vm/kopi/pkg/duration"
	httpClient "github.com/kopi-vm/kopi/pkg/http"
	"github.com/kopi-vm/kopi/pkg/locking"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/pkg/retry"
	"github.com/kopi-vm/kopi/pkg/schema"
	"github.com/kopi-vm/kopi/pkg/ui"
	"github.com/kopi-vm/kopi/toolchain/installer"
)

// Environment carries the per-invocation services shared by every command.
type Environment struct {
	Config     *schema.Configuration
	Controller *locking.Controller
	Stager     *installer.Stager
	Cache      *cache.Store
	Downloader *installer.Downloader
	// Out receives command output; status and logs go to stderr.
	Out    io.Writer
	Styles ui.Styles
}

// EnvironmentOption customizes an Environment.
type EnvironmentOption func(*Environment)

// WithDownloader replaces the default downloader.
func WithDownloader(d *installer.Downloader) EnvironmentOption {
	return func(e *Environment) {
		e.Downloader = d
	}
}

// NewEnvironment wires the stager, cache store and downloader to controller.
func NewEnvironment(cfg *schema.Configuration, controller *locking.Controller, out io.Writer, styles ui.Styles, opts ...EnvironmentOption) *Environment {
	defer perf.Track(nil, "toolchain.NewEnvironment")()

	home := controller.Home()
	retryConfig := cfg.Download.Retry
	if retryConfig.MaxAttempts == 0 {
		retryConfig = retry.DefaultConfig()
	}

	env := &Environment{
		Config:     cfg,
		Controller: controller,
		Stager:     installer.NewStager(home, controller),
		Cache:      cache.NewStore(home, controller),
		Downloader: installer.NewDownloader(filepath.Join(home, cache.DirName, installer.DownloadsDirName),
			installer.WithRetry(retryConfig),
			installer.WithHTTPClient(httpClient.NewDefaultClient(
				httpClient.WithTimeout(cfg.Download.Timeout),
				httpClient.WithGitHubToken(httpClient.GetGitHubTokenFromEnv()),
			))),
		Out:    out,
		Styles: styles,
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// StaleAfter is the hygiene threshold: the configured value, or one derived from the lock timeout.
func (e *Environment) StaleAfter() time.Duration {
	if e.Config != nil && e.Config.Locking.StaleAfter != "" {
		d, err := duration.ParseDuration(e.Config.Locking.StaleAfter)
		if err == nil && d > 0 {
			return d
		}
		log.Warn("Ignoring invalid locking.stale_after", "value", e.Config.Locking.StaleAfter, "error", err)
	}
	return locking.DefaultStaleAfter(e.Controller.Timeout().Timeout)
}

// Sweep runs lock and staging hygiene with the StaleAfter threshold.
func (e *Environment) Sweep(ctx context.Context) locking.Report {
	return e.SweepOlderThan(ctx, e.StaleAfter())
}

// SweepOlderThan runs lock and staging hygiene with an explicit threshold.
func (e *Environment) SweepOlderThan(ctx context.Context, threshold time.Duration) locking.Report {
	return locking.Sweep(ctx, locking.HygieneConfig{
		LockRoot:    e.Controller.LockRoot(),
		StagingRoot: e.Stager.StagingRoot(),
		StaleAfter:  threshold,
	})
}
