package toolchain

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/pkg/ui"
	"github.com/kopi-vm/kopi/toolchain/installer"
)

// RunList prints the installed packages as a table.
func RunList(env *Environment) error {
	defer perf.Track(nil, "toolchain.RunList")()

	installs, err := env.Stager.List()
	if err != nil {
		return err
	}
	if len(installs) == 0 {
		_, _ = fmt.Fprintln(env.Out, env.Styles.Muted.Render("No JDKs installed. Run `kopi install <distribution>@<version>`."))
		return nil
	}

	rows := lo.Map(installs, func(m installer.Metadata, _ int) []string {
		installed := ""
		if !m.InstalledAt.IsZero() {
			installed = m.InstalledAt.Local().Format(time.DateTime)
		}
		platform := lo.Ternary(m.OS == "", "", m.OS+"/"+m.Architecture)
		return []string{m.Slug, m.Distribution, m.Version, m.Kind, platform, installed}
	})
	_, _ = fmt.Fprintln(env.Out, ui.RenderTable(env.Styles, []string{"name", "distribution", "version", "type", "platform", "installed"}, rows))
	return nil
}
