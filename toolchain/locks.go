package toolchain

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/kopi-vm/kopi/pkg/locking"
	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/pkg/ui"
)

// RunLocksStatus lists the lock files under the lock root with their state.
func RunLocksStatus(env *Environment) error {
	defer perf.Track(nil, "toolchain.RunLocksStatus")()

	root := env.Controller.LockRoot()
	entries, err := locking.ListLocks(root, env.StaleAfter())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(env.Out, env.Styles.Muted.Render("No lock files under "+root))
		return nil
	}

	rows := lo.Map(entries, func(e locking.LockEntry, _ int) []string {
		pid := ""
		if e.Lease != nil {
			pid = strconv.Itoa(e.Lease.PID)
		}
		return []string{e.Name(root), e.Backend.String(), string(e.State), e.Age.Round(time.Second).String(), pid}
	})
	_, _ = fmt.Fprintln(env.Out, ui.RenderTable(env.Styles, []string{"lock", "backend", "state", "age", "pid"}, rows))
	return nil
}

// RunLocksSweep removes stale fallback markers and abandoned staging directories.
// olderThan overrides the hygiene threshold when positive.
func RunLocksSweep(ctx context.Context, env *Environment, olderThan time.Duration) locking.Report {
	defer perf.Track(nil, "toolchain.RunLocksSweep")()

	threshold := olderThan
	if threshold <= 0 {
		threshold = env.StaleAfter()
	}
	report := env.SweepOlderThan(ctx, threshold)
	_, _ = fmt.Fprintf(env.Out, "%s Removed %d fallback markers and %d staging directories older than %s\n",
		env.Styles.Success.Render("✓"), report.RemovedMarkers, report.RemovedStaging, threshold)
	if report.Errors > 0 {
		_, _ = fmt.Fprintf(env.Out, "%s %d entries could not be removed; run with --log-level Debug for details\n",
			env.Styles.Warning.Render("!"), report.Errors)
	}
	return report
}
