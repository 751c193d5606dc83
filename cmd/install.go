package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/toolchain"
)

var installCmd = &cobra.Command{
	Use:   "install <distribution>@<version>",
	Short: "Install a JDK atomically",
	Long: `Install a JDK from a local archive, an http(s) URL, or the metadata cache.

The archive is extracted into a private staging directory, verified, and moved into
place with a single rename while the installation lock for the package is held.
A second kopi process installing the same package waits for the lock and then finds
the install already present.`,
	Example: `  kopi install temurin@21 --from ./OpenJDK21U-jdk_x64_linux.tar.gz --sha256 <hex>
  kopi install temurin@21 --from https://github.com/adoptium/temurin21-binaries/releases/download/.../OpenJDK21U-jdk_x64_linux_hotspot_21.0.2_13.tar.gz
  kopi install corretto@17 --lock-timeout 30
  kopi install 21 --no-wait`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer perf.Track(nil, "cmd.install")()

		flags := cmd.Flags()
		from, _ := flags.GetString("from")
		sha, _ := flags.GetString("sha256")
		smoke, _ := flags.GetString("smoke")
		noSmoke, _ := flags.GetBool("no-smoke")
		platform, err := platformFromFlags(cmd)
		if err != nil {
			return err
		}

		_, err = toolchain.RunInstall(cmd.Context(), kopiEnv, toolchain.InstallOptions{
			Spec:     args[0],
			From:     from,
			SHA256:   sha,
			Smoke:    smoke,
			NoSmoke:  noSmoke,
			Platform: platform,
		})
		return err
	},
}

// addPlatformFlags registers the coordinate selectors shared by install and uninstall.
func addPlatformFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "", "Package type: jdk or jre (default jdk)")
	cmd.Flags().String("os", "", "Target operating system (default: this host)")
	cmd.Flags().String("arch", "", "Target architecture (default: this host)")
	cmd.Flags().String("libc", "", "C library flavour, e.g. glibc or musl")
	cmd.Flags().Bool("javafx", false, "Select a build with JavaFX bundled")
	cmd.Flags().StringSlice("tag", nil, "Variant tag, repeatable (e.g. --tag lts)")
}

func platformFromFlags(cmd *cobra.Command) (toolchain.PlatformOptions, error) {
	flags := cmd.Flags()
	var p toolchain.PlatformOptions
	var err error
	if p.Kind, err = flags.GetString("type"); err != nil {
		return p, err
	}
	if p.OS, err = flags.GetString("os"); err != nil {
		return p, err
	}
	if p.Arch, err = flags.GetString("arch"); err != nil {
		return p, err
	}
	if p.LibC, err = flags.GetString("libc"); err != nil {
		return p, err
	}
	if p.JavaFX, err = flags.GetBool("javafx"); err != nil {
		return p, err
	}
	p.Tags, err = flags.GetStringSlice("tag")
	return p, err
}

func init() {
	installCmd.Flags().String("from", "", "Archive to install: a local .tar.gz/.zip path or an http(s) URL")
	installCmd.Flags().String("sha256", "", "Expected SHA-256 of the archive")
	installCmd.Flags().String("smoke", "", "Command run inside the staged JDK before commit (default \"bin/java -version\")")
	installCmd.Flags().Bool("no-smoke", false, "Skip the smoke test")
	addPlatformFlags(installCmd)
	RootCmd.AddCommand(installCmd)
}
