package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kopi-vm/kopi/pkg/config"
)

var skipRuntime = map[string]string{skipRuntimeAnnotation: "true"}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Show or change settings in <home>/config.toml",
	Annotations: skipRuntime,
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration",
	Long:        "Print the configuration after merging defaults, the config file, KOPI_* environment variables and flags.",
	Args:        cobra.NoArgs,
	Annotations: skipRuntime,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := config.Render(kopiConfig)
		if err != nil {
			return err
		}
		source := kopiConfig.ConfigFile
		if source == "" {
			source = config.Path(kopiConfig.KopiHome) + " (not present, defaults shown)"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", source, out)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration key",
	Long: "Set a configuration key. The value is validated before the file is rewritten atomically.\n\nKeys:\n  " +
		strings.Join(config.Keys(), "\n  "),
	Example:     "  kopi config set locking.timeout 120\n  kopi config set locking.mode fallback",
	Args:        cobra.ExactArgs(2),
	Annotations: skipRuntime,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.NewWriter(kopiConfig.KopiHome, nil).Set(args[0], args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", strings.ToLower(args[0]), args[1])
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:         "unset <key>",
	Short:       "Remove a configuration key so its default applies",
	Args:        cobra.ExactArgs(1),
	Annotations: skipRuntime,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.NewWriter(kopiConfig.KopiHome, nil).Unset(args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", strings.ToLower(args[0]))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configUnsetCmd)
	RootCmd.AddCommand(configCmd)
}
