package toolchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/cache"
	"github.com/kopi-vm/kopi/pkg/duration"
	httpClient "github.com/kopi-vm/kopi/pkg/http"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/pkg/retry"
	"github.com/kopi-vm/kopi/pkg/ui"
	"github.com/kopi-vm/kopi/toolchain/installer"
)

// RunCacheRefresh replaces the metadata cache with the document at source, a file
// path or an http(s) URL.
func RunCacheRefresh(ctx context.Context, env *Environment, source string, client httpClient.Client) error {
	defer perf.Track(nil, "toolchain.RunCacheRefresh")()

	var (
		c   *cache.MetadataCache
		err error
	)
	if installer.IsRemote(source) {
		if client == nil {
			client = httpClient.NewDefaultClient(
				httpClient.WithTimeout(env.Config.Download.Timeout),
				httpClient.WithGitHubToken(httpClient.GetGitHubTokenFromEnv()),
			)
		}
		var data []byte
		err = retry.WithPredicate(ctx, &env.Config.Download.Retry, func() error {
			data, err = httpClient.Get(ctx, source, client)
			return err
		}, func(err error) bool {
			return ctx.Err() == nil && !errors.Is(err, errUtils.ErrHTTP404)
		})
		if err != nil {
			return err
		}
		c, err = env.Cache.RefreshData(ctx, data, source)
	} else {
		c, err = env.Cache.Refresh(ctx, source)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(env.Out, "%s Cached %d packages from %d distributions\n",
		env.Styles.Success.Render("✓"), c.TotalPackages(), len(c.Distributions))
	return nil
}

// RunCacheShow summarizes the metadata cache and warns when it is older than max_age.
func RunCacheShow(env *Environment) error {
	defer perf.Track(nil, "toolchain.RunCacheShow")()

	c, ok, err := env.Cache.Load()
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintf(env.Out, "%s\n", env.Styles.Muted.Render("No metadata cache. Run `kopi cache refresh --from <file or URL>`."))
		return nil
	}

	names := c.DistributionNames()
	rows := lo.Map(names, func(name string, _ int) []string {
		dist := c.Distributions[name]
		latest := ""
		if len(dist.Packages) > 0 {
			latest = dist.Packages[0].Version
		}
		return []string{name, dist.DisplayName, fmt.Sprintf("%d", len(dist.Packages)), latest}
	})

	age := time.Since(c.LastUpdated)
	_, _ = fmt.Fprintf(env.Out, "Cache: %s\nUpdated: %s (%s ago)\n", env.Cache.Path(),
		c.LastUpdated.Local().Format(time.DateTime), age.Round(time.Second))
	_, _ = fmt.Fprintln(env.Out, ui.RenderTable(env.Styles, []string{"distribution", "name", "packages", "latest"}, rows))

	if c.IsStale(maxAge(env), time.Now()) {
		_, _ = fmt.Fprintf(env.Out, "%s The cache is older than %s. Run `kopi cache refresh` to update it.\n",
			env.Styles.Warning.Render("!"), maxAge(env))
	}
	return nil
}

func maxAge(env *Environment) time.Duration {
	if env.Config != nil && env.Config.Cache.MaxAge != "" {
		d, err := duration.ParseDuration(env.Config.Cache.MaxAge)
		if err == nil && d > 0 {
			return d
		}
		log.Warn("Ignoring invalid cache.max_age", "value", env.Config.Cache.MaxAge, "error", err)
	}
	return cache.DefaultMaxAge
}
