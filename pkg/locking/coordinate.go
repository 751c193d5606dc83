package locking

import (
	"runtime"
	"slices"
	"strings"

	"github.com/samber/lo"

	errUtils "github.com/kopi-vm/kopi/errors"
)

// Package kinds.
const (
	KindJDK = "jdk"
	KindJRE = "jre"
)

// Coordinate identifies one installable artifact. All fields are normalized by
// NewCoordinate, so two coordinates describing the same artifact compare equal.
type Coordinate struct {
	Distribution string
	Version      string
	Kind         string
	OS           string
	Architecture string
	LibC         string
	JavaFX       bool
	Tags         []string
}

// CoordinateOption customizes a Coordinate.
type CoordinateOption func(*Coordinate)

// WithKind sets the package kind (jdk or jre).
func WithKind(kind string) CoordinateOption {
	return func(c *Coordinate) {
		c.Kind = kind
	}
}

// WithPlatform overrides the operating system and architecture.
func WithPlatform(os, arch string) CoordinateOption {
	return func(c *Coordinate) {
		c.OS = os
		c.Architecture = arch
	}
}

// WithLibC records the libc flavour (glibc, musl).
func WithLibC(libc string) CoordinateOption {
	return func(c *Coordinate) {
		c.LibC = libc
	}
}

// WithJavaFX marks a JavaFX bundled build.
func WithJavaFX(bundled bool) CoordinateOption {
	return func(c *Coordinate) {
		c.JavaFX = bundled
	}
}

// WithTags adds variant tags such as "lts" or "ea".
func WithTags(tags ...string) CoordinateOption {
	return func(c *Coordinate) {
		c.Tags = append(c.Tags, tags...)
	}
}

// NewCoordinate builds a normalized coordinate. The platform defaults to the running host.
func NewCoordinate(distribution, version string, opts ...CoordinateOption) (Coordinate, error) {
	c := Coordinate{
		Distribution: distribution,
		Version:      version,
		Kind:         KindJDK,
		OS:           HostOS(),
		Architecture: HostArch(),
	}
	for _, opt := range opts {
		opt(&c)
	}

	c.Distribution = SanitizeSegment(c.Distribution)
	c.Version = SanitizeSegment(c.Version)
	c.Kind = SanitizeSegment(c.Kind)
	c.OS = SanitizeSegment(c.OS)
	c.Architecture = SanitizeSegment(c.Architecture)
	c.LibC = SanitizeSegment(c.LibC)

	tags := lo.Uniq(lo.Compact(lo.Map(c.Tags, func(tag string, _ int) string {
		return SanitizeSegment(tag)
	})))
	slices.Sort(tags)
	c.Tags = tags

	if c.Distribution == "" || c.Version == "" {
		return Coordinate{}, errUtils.Build(errUtils.ErrInvalidCoordinate).
			WithExplanationf("Distribution %q and version %q must both contain letters or digits", distribution, version).
			WithHint("Use the form <distribution>@<version>, for example temurin@21").
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}
	if c.Kind != KindJDK && c.Kind != KindJRE {
		return Coordinate{}, errUtils.Build(errUtils.ErrInvalidCoordinate).
			WithExplanationf("Unsupported package type %q", c.Kind).
			WithHint("Supported package types are jdk and jre").
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}

	return c, nil
}

// Slug is the filesystem-safe identifier used for lock files, staging and install directories.
func (c Coordinate) Slug() string {
	segments := []string{c.Distribution, c.Version, c.Kind, c.Architecture, c.OS, c.LibC}
	segments = append(segments, c.Tags...)
	if c.JavaFX {
		segments = append(segments, "javafx")
	}
	return strings.Join(lo.Compact(segments), "-")
}

// Equal reports whether both coordinates name the same artifact.
func (c Coordinate) Equal(other Coordinate) bool {
	return c.Distribution == other.Distribution &&
		c.Version == other.Version &&
		c.Kind == other.Kind &&
		c.OS == other.OS &&
		c.Architecture == other.Architecture &&
		c.LibC == other.LibC &&
		c.JavaFX == other.JavaFX &&
		slices.Equal(c.Tags, other.Tags)
}

func (c Coordinate) String() string {
	return c.Slug()
}

// SanitizeSegment lowercases value, keeps ASCII letters and digits, and collapses every
// other run of characters into one dash. Leading and trailing dashes are trimmed.
func SanitizeSegment(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	lastDash := false

	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}

	return strings.Trim(b.String(), "-")
}

// HostOS returns the running OS using the vendor naming in JDK download metadata.
func HostOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	default:
		return runtime.GOOS
	}
}

// HostArch returns the running architecture using JDK vendor naming.
func HostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "386":
		return "x86"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}
