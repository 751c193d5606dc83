// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Version is overridden at build time: -ldflags "-X github.com/kopi-vm/kopi/pkg/version.Version=v0.1.0".
var Version = "dev"

// Commit is the git revision of the build.
var Commit = ""

// String renders the version line printed by `kopi version`.
func String() string {
	s := fmt.Sprintf("kopi %s on %s/%s", Version, runtime.GOOS, runtime.GOARCH)
	if Commit != "" {
		s += fmt.Sprintf(" (%s)", Commit)
	}
	return s
}
