package cmd

import (
	"github.com/spf13/cobra"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/toolchain"
)

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect and clean up lock files",
}

var locksStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List lock files with their backend and state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return toolchain.RunLocksStatus(kopiEnv)
	},
}

var locksSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove stale fallback markers and abandoned staging directories",
	Long: `Remove fallback lock markers and staging directories older than locking.stale_after
(default: the lock timeout plus one minute, at least ten minutes), or older than
--older-than when given. Advisory lock files are never removed. The same sweep runs
quietly at the start of every command.`,
	Example: `  kopi locks sweep
  kopi locks sweep --older-than 1m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		olderThan, err := cmd.Flags().GetDuration("older-than")
		if err != nil {
			return err
		}
		if olderThan < 0 {
			return errUtils.Build(errUtils.ErrInvalidDuration).
				WithExplanationf("--older-than must not be negative, got %s", olderThan).
				WithExitCode(errUtils.ExitCodeUsage).
				Err()
		}
		toolchain.RunLocksSweep(cmd.Context(), kopiEnv, olderThan)
		return nil
	},
}

func init() {
	locksSweepCmd.Flags().Duration("older-than", 0, "Remove markers and staging directories older than this (default locking.stale_after)")
	locksCmd.AddCommand(locksStatusCmd, locksSweepCmd)
	RootCmd.AddCommand(locksCmd)
}
