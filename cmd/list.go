package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kopi-vm/kopi/toolchain"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed JDKs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return toolchain.RunList(kopiEnv)
	},
}

func init() {
	RootCmd.AddCommand(listCmd)
}
