// Package toolchain implements the kopi commands on top of the locking and installer packages.
package toolchain

import (
	"strings"

	"github.com/samber/lo"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/locking"
	"github.com/kopi-vm/kopi/pkg/perf"
)

// DefaultDistribution is used when a package spec names only a version.
const DefaultDistribution = "temurin"

const specHint = "Use `<distribution>@<version>` (e.g. `temurin@21`) or just a version (e.g. `21`)"

// PackageSpec is a parsed `<distribution>@<version>` argument.
type PackageSpec struct {
	Distribution string
	Version      string
}

func (p PackageSpec) String() string {
	return p.Distribution + "@" + p.Version
}

// ParsePackageSpec accepts `dist@version`, `dist:version` or a bare version.
func ParsePackageSpec(arg string) (PackageSpec, error) {
	defer perf.Track(nil, "toolchain.ParsePackageSpec")()

	raw := strings.TrimSpace(arg)
	dist, version := DefaultDistribution, raw
	if i := strings.IndexAny(raw, "@:"); i >= 0 {
		dist, version = strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:])
	}

	if dist == "" || version == "" || strings.ContainsAny(version, "@: \t") {
		return PackageSpec{}, errUtils.Build(errUtils.ErrInvalidPackageSpec).
			WithExplanationf("Invalid package specification: `%s`", arg).
			WithHint(specHint).
			WithContext("spec", arg).
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}
	return PackageSpec{Distribution: strings.ToLower(dist), Version: version}, nil
}

// PlatformOptions selects the non-default coordinate fields of a package.
type PlatformOptions struct {
	Kind   string
	OS     string
	Arch   string
	LibC   string
	JavaFX bool
	Tags   []string
}

// IsHost reports whether the options target the running OS and architecture.
func (o PlatformOptions) IsHost() bool {
	return (o.OS == "" || strings.EqualFold(o.OS, locking.HostOS())) &&
		(o.Arch == "" || strings.EqualFold(o.Arch, locking.HostArch()))
}

// Coordinate builds the lock and install coordinate for spec.
func (o PlatformOptions) Coordinate(spec PackageSpec) (locking.Coordinate, error) {
	opts := []locking.CoordinateOption{locking.WithJavaFX(o.JavaFX)}
	if o.Kind != "" {
		opts = append(opts, locking.WithKind(o.Kind))
	}
	if o.OS != "" || o.Arch != "" {
		opts = append(opts, locking.WithPlatform(lo.CoalesceOrEmpty(o.OS, locking.HostOS()), lo.CoalesceOrEmpty(o.Arch, locking.HostArch())))
	}
	if o.LibC != "" {
		opts = append(opts, locking.WithLibC(o.LibC))
	}
	if len(o.Tags) > 0 {
		opts = append(opts, locking.WithTags(o.Tags...))
	}

	coord, err := locking.NewCoordinate(spec.Distribution, spec.Version, opts...)
	if err != nil {
		return locking.Coordinate{}, errUtils.Build(errUtils.ErrInvalidPackageSpec).
			WithCause(err).
			WithContext("spec", spec.String()).
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}
	return coord, nil
}
