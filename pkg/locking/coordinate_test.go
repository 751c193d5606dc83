package locking

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/kopi-vm/kopi/errors"
)

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Temurin", "temurin"},
		{"21.0.2+13", "21-0-2-13"},
		{"  spaced  out ", "spaced-out"},
		{"--a__b--", "a-b"},
		{"x64", "x64"},
		{"ÄÖÜ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeSegment(tt.input))
		})
	}
}

func TestNewCoordinate_Slug(t *testing.T) {
	c, err := NewCoordinate("Temurin", "21.0.2+13",
		WithPlatform("linux", "x64"),
		WithLibC("glibc"),
		WithTags("LTS", "ga", "lts", " "),
		WithJavaFX(true))
	require.NoError(t, err)

	assert.Equal(t, "temurin-21-0-2-13-jdk-x64-linux-glibc-ga-lts-javafx", c.Slug())
	assert.Equal(t, []string{"ga", "lts"}, c.Tags)
}

func TestNewCoordinate_OmitsEmptySegments(t *testing.T) {
	c, err := NewCoordinate("corretto", "17", WithKind("JRE"), WithPlatform("macos", "aarch64"))
	require.NoError(t, err)

	assert.Equal(t, "corretto-17-jre-aarch64-macos", c.Slug())
}

func TestNewCoordinate_DefaultsToHost(t *testing.T) {
	c, err := NewCoordinate("zulu", "11")
	require.NoError(t, err)

	assert.Equal(t, HostOS(), c.OS)
	assert.Equal(t, HostArch(), c.Architecture)
	assert.Equal(t, KindJDK, c.Kind)
}

func TestNewCoordinate_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		distribution string
		version      string
		opts         []CoordinateOption
	}{
		{name: "empty distribution", distribution: "", version: "21"},
		{name: "punctuation only version", distribution: "temurin", version: "+++"},
		{name: "unknown kind", distribution: "temurin", version: "21", opts: []CoordinateOption{WithKind("jmod")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCoordinate(tt.distribution, tt.version, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, errUtils.ErrInvalidCoordinate)
			assert.Equal(t, errUtils.ExitCodeUsage, errUtils.GetExitCode(err))
		})
	}
}

func TestCoordinate_Equal(t *testing.T) {
	a, err := NewCoordinate("temurin", "21", WithPlatform("linux", "x64"), WithTags("lts", "ga"))
	require.NoError(t, err)
	b, err := NewCoordinate("TEMURIN", "21", WithPlatform("Linux", "X64"), WithTags("ga", "LTS"))
	require.NoError(t, err)
	c, err := NewCoordinate("temurin", "21", WithPlatform("linux", "x64"), WithJavaFX(true))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestScope_LockPath(t *testing.T) {
	root := filepath.Join("home", "locks")
	coord, err := NewCoordinate("temurin", "21", WithPlatform("linux", "x64"))
	require.NoError(t, err)

	install := InstallationScope(coord)
	assert.Equal(t, filepath.Join(root, "install", "temurin", "temurin-21-jdk-x64-linux.lock"), install.LockPath(root))
	assert.Equal(t, "installation temurin-21-jdk-x64-linux", install.Label())
	assert.True(t, install.IsInstallation())

	cache := CacheWriterScope()
	assert.Equal(t, filepath.Join(root, "cache.lock"), cache.LockPath(root))
	assert.Equal(t, "cache writer", cache.Label())
	_, ok := cache.Coordinate()
	assert.False(t, ok)
}

func TestScope_Equal(t *testing.T) {
	a, _ := NewCoordinate("temurin", "21", WithPlatform("linux", "x64"))
	b, _ := NewCoordinate("temurin", "17", WithPlatform("linux", "x64"))

	assert.True(t, InstallationScope(a).Equal(InstallationScope(a)))
	assert.False(t, InstallationScope(a).Equal(InstallationScope(b)))
	assert.False(t, InstallationScope(a).Equal(CacheWriterScope()))
	assert.True(t, CacheWriterScope().Equal(CacheWriterScope()))
}

func TestParseMode(t *testing.T) {
	for input, expected := range map[string]Mode{
		"":           ModeAuto,
		"AUTO":       ModeAuto,
		"advisory":   ModeAdvisory,
		" Fallback ": ModeFallback,
	} {
		mode, err := ParseMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, mode, input)
	}

	_, err := ParseMode("flock")
	assert.ErrorIs(t, err, errUtils.ErrInvalidLockMode)
	assert.Equal(t, errUtils.ExitCodeUsage, errUtils.GetExitCode(err))
}
