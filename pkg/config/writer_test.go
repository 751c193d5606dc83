package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/filesystem"
)

func TestWriter_SetRoundTripsThroughLoad(t *testing.T) {
	home := t.TempDir()
	w := NewWriter(home, nil)

	require.NoError(t, w.Set("locking.timeout", "infinite"))
	require.NoError(t, w.Set("Locking.Mode", "FALLBACK"))
	require.NoError(t, w.Set("errors.sentry.enabled", "true"))

	cfg, err := Load(home, nil)
	require.NoError(t, err)
	assert.Equal(t, "infinite", cfg.Locking.Timeout)
	assert.Equal(t, "fallback", cfg.Locking.Mode)
	assert.True(t, cfg.Errors.Sentry.Enabled)
}

func TestWriter_PreservesOtherKeys(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, "[logs]\nlevel = \"Debug\"\n\n[custom]\nowner = \"ops\"\n")

	require.NoError(t, NewWriter(home, nil).Set(KeyCacheMaxAge, "48h"))

	data, err := os.ReadFile(filepath.Join(home, FileName))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "owner = 'ops'")
	assert.Contains(t, content, "level = 'Debug'")
	assert.Contains(t, content, "max_age = '48h'")
}

func TestWriter_Rejects(t *testing.T) {
	home := t.TempDir()
	w := NewWriter(home, nil)

	tests := []struct {
		name  string
		key   string
		value string
		want  error
	}{
		{name: "unknown key", key: "locking.colour", value: "red", want: errUtils.ErrUnknownConfigKey},
		{name: "bad mode", key: KeyLockingMode, value: "sometimes", want: errUtils.ErrWriteConfig},
		{name: "bad timeout", key: KeyLockingTimeout, value: "soon", want: errUtils.ErrWriteConfig},
		{name: "bad level", key: KeyLogsLevel, value: "Loud", want: errUtils.ErrWriteConfig},
		{name: "bad duration", key: KeyLockingStaleAfter, value: "-1h", want: errUtils.ErrWriteConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Set(tt.key, tt.value)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, errUtils.ExitCodeUsage, errUtils.GetExitCode(err))
		})
	}
	assert.NoFileExists(t, filepath.Join(home, FileName))
}

func TestWriter_Unset(t *testing.T) {
	home := t.TempDir()
	w := NewWriter(home, nil)
	require.NoError(t, w.Set(KeyLockingMode, "advisory"))

	require.NoError(t, w.Unset(KeyLockingMode))
	require.NoError(t, w.Unset("locking.never_set"))

	cfg, err := Load(home, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLockingMode, cfg.Locking.Mode)
}

func TestWriter_WriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	fsys := filesystem.NewMockFileSystem(ctrl)
	home := t.TempDir()

	fsys.EXPECT().ReadFile(Path(home)).Return(nil, os.ErrNotExist)
	fsys.EXPECT().WriteFileAtomic(Path(home), gomock.Any(), os.FileMode(configFilePerm)).Return(errors.New("read-only filesystem"))

	err := NewWriter(home, fsys).Set(KeyLogsLevel, "Debug")
	assert.ErrorIs(t, err, errUtils.ErrWriteConfig)
}

func TestKeysAndRender(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, KeyLockingTimeout)
	assert.True(t, strings.Compare(keys[0], keys[len(keys)-1]) < 0)

	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)
	out, err := Render(cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "[locking]")
	assert.Contains(t, out, "mode = 'auto'")
}

func TestWriter_DownloadSettings(t *testing.T) {
	home := t.TempDir()
	w := NewWriter(home, nil)

	require.NoError(t, w.Set(KeyDownloadTimeout, "90s"))
	require.NoError(t, w.Set(KeyDownloadMaxAttempts, "5"))
	assert.ErrorIs(t, w.Set(KeyDownloadMaxAttempts, "0"), errUtils.ErrWriteConfig)
	assert.ErrorIs(t, w.Set(KeyDownloadTimeout, "forever"), errUtils.ErrWriteConfig)

	cfg, err := Load(home, nil)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Download.Timeout)
	assert.Equal(t, 5, cfg.Download.Retry.MaxAttempts)
}
