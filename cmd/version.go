package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kopi-vm/kopi/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the CLI version",
	Example:     "kopi version",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipRuntimeAnnotation: "true"},
	Run: func(cmd *cobra.Command, _ []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
