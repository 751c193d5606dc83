package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kopi-vm/kopi/toolchain"
)

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <distribution>@<version>",
	Aliases: []string{"remove", "rm"},
	Short:   "Remove an installed JDK",
	Long: `Remove an installed JDK under its installation lock. The install directory is
renamed into the staging area first, so it disappears in one step even if removal
of its contents is interrupted.`,
	Example: "  kopi uninstall temurin@21",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := platformFromFlags(cmd)
		if err != nil {
			return err
		}
		return toolchain.RunUninstall(cmd.Context(), kopiEnv, args[0], platform)
	},
}

func init() {
	addPlatformFlags(uninstallCmd)
	RootCmd.AddCommand(uninstallCmd)
}
