package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKopiHome_EnvOverride(t *testing.T) {
	tempHome := filepath.Join(t.TempDir(), "custom-kopi")
	t.Setenv(HomeEnvVar, tempHome)

	dir, err := KopiHome()
	require.NoError(t, err)
	assert.Equal(t, tempHome, dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestKopiHome_DefaultUnderUserHome(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv(HomeEnvVar, "")
	t.Setenv("HOME", tempHome)
	t.Setenv("USERPROFILE", tempHome)

	dir, err := KopiHome()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempHome, ".kopi"), dir)
}

func TestGetKopiDir_Nested(t *testing.T) {
	home := t.TempDir()

	dir, err := GetKopiDir(home, filepath.Join("locks", "install"), 0o700)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "locks", "install"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetKopiDir_EmptySubpath(t *testing.T) {
	home := t.TempDir()

	dir, err := GetKopiDir(home, "", 0o755)
	require.NoError(t, err)
	assert.Equal(t, home, dir)
}

func TestGetKopiDir_MkdirError(t *testing.T) {
	home := t.TempDir()
	blockingFile := filepath.Join(home, "locks")
	require.NoError(t, os.WriteFile(blockingFile, []byte("blocking"), 0o644))

	_, err := GetKopiDir(home, filepath.Join("locks", "install"), 0o700)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create directory")
}
