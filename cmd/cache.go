package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kopi-vm/kopi/toolchain"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the package metadata cache",
	Long: `The metadata cache (<home>/cache/metadata.json) maps distributions and versions to
download URLs and checksums. Reads never lock; refreshes hold the cache writer lock.`,
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace the metadata cache from a file or URL",
	Example: `  kopi cache refresh --from ./packages.json
  kopi cache refresh --from https://example.com/kopi/packages.json --lock-timeout 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		from, _ := cmd.Flags().GetString("from")
		return toolchain.RunCacheRefresh(cmd.Context(), kopiEnv, from, nil)
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize the metadata cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return toolchain.RunCacheShow(kopiEnv)
	},
}

func init() {
	cacheRefreshCmd.Flags().String("from", "", "JSON document with a package list or a full cache (path or http(s) URL)")
	_ = cacheRefreshCmd.MarkFlagRequired("from")

	cacheCmd.AddCommand(cacheRefreshCmd, cacheShowCmd)
	RootCmd.AddCommand(cacheCmd)
}
