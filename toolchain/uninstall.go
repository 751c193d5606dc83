package toolchain

import (
	"context"
	"fmt"

	"github.com/kopi-vm/kopi/pkg/perf"
)

// RunUninstall removes one installed package under its installation lock.
func RunUninstall(ctx context.Context, env *Environment, arg string, platform PlatformOptions) error {
	defer perf.Track(nil, "toolchain.RunUninstall")()

	spec, err := ParsePackageSpec(arg)
	if err != nil {
		return err
	}
	coord, err := platform.Coordinate(spec)
	if err != nil {
		return err
	}

	if err := env.Stager.Uninstall(ctx, coord); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(env.Out, "%s Uninstalled %s\n", env.Styles.Success.Render("✓"), coord.Slug())
	return nil
}
