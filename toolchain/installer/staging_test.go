package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/filesystem"
	"github.com/kopi-vm/kopi/pkg/locking"
)

// countingLocker records how often the installation lock is taken.
type countingLocker struct {
	inner    Locker
	acquires atomic.Int32
}

func (c *countingLocker) Acquire(ctx context.Context, scope locking.Scope, opts ...locking.AcquireOption) (*locking.Handle, error) {
	c.acquires.Add(1)
	return c.inner.Acquire(ctx, scope, opts...)
}

func newTestStager(t *testing.T, opts ...StagerOption) (*Stager, *countingLocker, string) {
	t.Helper()
	home := t.TempDir()
	locker := &countingLocker{inner: locking.NewController(home, locking.WithMode(locking.ModeAdvisory))}
	return NewStager(home, locker, opts...), locker, home
}

func testCoordinate(t *testing.T) locking.Coordinate {
	t.Helper()
	c, err := locking.NewCoordinate("temurin", "21", locking.WithPlatform("linux", "x64"))
	require.NoError(t, err)
	return c
}

func writeFiles(files map[string]string) ProduceFunc {
	return func(_ context.Context, stagingDir string) error {
		for name, body := range files {
			path := filepath.Join(stagingDir, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
				return err
			}
		}
		return nil
	}
}

func stagingEntries(t *testing.T, s *Stager) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(s.StagingRoot())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	return entries
}

func TestStager_InstallCommits(t *testing.T) {
	s, locker, home := newTestStager(t)
	coord := testCoordinate(t)

	result, err := s.Install(context.Background(), coord,
		writeFiles(map[string]string{"bin/java": "java", "release": "JAVA_VERSION=21"}),
		LayoutVerifier(),
		WithSource("/tmp/jdk.tar.gz", "abc123"))
	require.NoError(t, err)

	assert.False(t, result.AlreadyInstalled)
	assert.Equal(t, filepath.Join(home, "jdks", "temurin-21-jdk-x64-linux"), result.Path)
	assert.FileExists(t, filepath.Join(result.Path, "bin", "java"))
	assert.True(t, s.IsInstalled(coord))
	assert.Equal(t, int32(1), locker.acquires.Load())
	assert.Empty(t, stagingEntries(t, s))

	meta, err := s.ReadMetadata(result.Path)
	require.NoError(t, err)
	assert.Equal(t, "temurin-21-jdk-x64-linux", meta.Slug)
	assert.Equal(t, "temurin", meta.Distribution)
	assert.Equal(t, "abc123", meta.SHA256)
	assert.False(t, meta.InstalledAt.IsZero())

	// The installation lock is released afterwards.
	other := locking.NewController(home, locking.WithMode(locking.ModeAdvisory))
	h, ok, err := other.TryAcquire(context.Background(), locking.InstallationScope(coord))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.Release())
}

func TestStager_InstallIsIdempotent(t *testing.T) {
	s, locker, _ := newTestStager(t)
	coord := testCoordinate(t)

	_, err := s.Install(context.Background(), coord, writeFiles(map[string]string{"bin/java": "java"}), nil)
	require.NoError(t, err)

	produced := false
	result, err := s.Install(context.Background(), coord, func(context.Context, string) error {
		produced = true
		return nil
	}, nil)
	require.NoError(t, err)

	assert.True(t, result.AlreadyInstalled)
	assert.False(t, produced)
	assert.Equal(t, int32(1), locker.acquires.Load(), "short circuit must not take the lock again")
	assert.Empty(t, stagingEntries(t, s))
}

func TestStager_AlreadyInstalledSkipsLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	fsys := filesystem.NewMockFileSystem(ctrl)
	coord := testCoordinate(t)
	home := t.TempDir()
	installDir := filepath.Join(home, "jdks", coord.Slug())
	require.NoError(t, os.MkdirAll(installDir, 0o755))
	info, err := os.Stat(installDir)
	require.NoError(t, err)

	fsys.EXPECT().Stat(installDir).Return(info, nil)
	// No MkdirAll, MkdirTemp, Rename or WriteFileAtomic may happen.

	locker := &countingLocker{}
	s := NewStager(home, locker, WithFileSystem(fsys))

	result, err := s.Install(context.Background(), coord, nil, nil)
	require.NoError(t, err)
	assert.True(t, result.AlreadyInstalled)
	assert.Equal(t, int32(0), locker.acquires.Load())
}

func TestStager_VerificationFailureDiscardsStaging(t *testing.T) {
	s, _, _ := newTestStager(t)
	coord := testCoordinate(t)

	_, err := s.Install(context.Background(), coord,
		writeFiles(map[string]string{"README": "not a jdk"}),
		LayoutVerifier())

	require.Error(t, err)
	assert.ErrorIs(t, err, errUtils.ErrVerification)
	assert.Equal(t, errUtils.ExitCodeVerification, errUtils.GetExitCode(err))
	assert.False(t, s.IsInstalled(coord))
	assert.Empty(t, stagingEntries(t, s))
}

func TestStager_ProduceFailureDiscardsStaging(t *testing.T) {
	s, _, _ := newTestStager(t)
	coord := testCoordinate(t)
	boom := errors.New("download interrupted")

	_, err := s.Install(context.Background(), coord, func(_ context.Context, dir string) error {
		_ = os.WriteFile(filepath.Join(dir, "partial"), []byte("x"), 0o644)
		return boom
	}, nil)

	assert.ErrorIs(t, err, errUtils.ErrStaging)
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.IsInstalled(coord))
	assert.Empty(t, stagingEntries(t, s))
}

// crashFS drops the commit rename and staging cleanup, as if the process died before them.
type crashFS struct {
	filesystem.OSFileSystem
}

func (crashFS) Rename(string, string) error { return errors.New("simulated crash") }

func (crashFS) RemoveAll(string) error { return nil }

func TestStager_CrashLeavesNoInstallAndHygieneCleansUp(t *testing.T) {
	s, _, home := newTestStager(t, WithFileSystem(crashFS{}))
	coord := testCoordinate(t)

	_, err := s.Install(context.Background(), coord, writeFiles(map[string]string{"bin/java": "java"}), nil)
	require.Error(t, err)
	assert.False(t, s.IsInstalled(coord))

	orphans := stagingEntries(t, s)
	require.Len(t, orphans, 1)
	orphan := filepath.Join(s.StagingRoot(), orphans[0].Name())
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(orphan, old, old))

	young := filepath.Join(s.StagingRoot(), coord.Slug()+"-in-progress")
	require.NoError(t, os.MkdirAll(young, 0o755))

	report := locking.Sweep(context.Background(), locking.HygieneConfig{
		LockRoot:    locking.LockRoot(home),
		StagingRoot: s.StagingRoot(),
		StaleAfter:  time.Hour,
	})

	assert.Equal(t, 1, report.RemovedStaging)
	assert.NoDirExists(t, orphan)
	assert.DirExists(t, young)
	assert.False(t, s.IsInstalled(coord))
}

func TestStager_ConcurrentInstallsProduceOnce(t *testing.T) {
	home := t.TempDir()
	coord := testCoordinate(t)
	var produced atomic.Int32

	produce := func(ctx context.Context, dir string) error {
		produced.Add(1)
		time.Sleep(100 * time.Millisecond)
		return writeFiles(map[string]string{"bin/java": "java"})(ctx, dir)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Separate controllers behave like separate processes.
			s := NewStager(home, locking.NewController(home, locking.WithMode(locking.ModeFallback)))
			_, err := s.Install(context.Background(), coord, produce, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), produced.Load())
}

func TestStager_LockTimeoutAbortsBeforeMutation(t *testing.T) {
	home := t.TempDir()
	coord := testCoordinate(t)

	holder := locking.NewController(home, locking.WithMode(locking.ModeAdvisory))
	h, err := holder.Acquire(context.Background(), locking.InstallationScope(coord))
	require.NoError(t, err)
	defer h.Release()

	waiter := locking.NewController(home,
		locking.WithMode(locking.ModeAdvisory),
		locking.WithTimeout(locking.Resolution{Timeout: locking.NoWait(), Source: locking.SourceCLI}))
	s := NewStager(home, waiter)

	_, err = s.Install(context.Background(), coord, writeFiles(map[string]string{"bin/java": "java"}), nil)
	assert.ErrorIs(t, err, errUtils.ErrLockTimeout)
	assert.Empty(t, stagingEntries(t, s))
}

func TestStager_Uninstall(t *testing.T) {
	s, locker, _ := newTestStager(t)
	coord := testCoordinate(t)

	_, err := s.Install(context.Background(), coord, writeFiles(map[string]string{"bin/java": "java"}), nil)
	require.NoError(t, err)

	require.NoError(t, s.Uninstall(context.Background(), coord))
	assert.False(t, s.IsInstalled(coord))
	assert.Empty(t, stagingEntries(t, s))
	assert.Equal(t, int32(2), locker.acquires.Load())

	err = s.Uninstall(context.Background(), coord)
	assert.ErrorIs(t, err, errUtils.ErrNotInstalled)
}

func TestStager_List(t *testing.T) {
	s, _, _ := newTestStager(t)

	installs, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, installs)

	for _, version := range []string{"21", "17"} {
		coord, err := locking.NewCoordinate("temurin", version, locking.WithPlatform("linux", "x64"))
		require.NoError(t, err)
		_, err = s.Install(context.Background(), coord, writeFiles(map[string]string{"bin/java": "java"}), nil)
		require.NoError(t, err)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(s.JDKsDir(), "hand-made"), 0o755))

	installs, err = s.List()
	require.NoError(t, err)
	require.Len(t, installs, 3)
	assert.Equal(t, "hand-made", installs[0].Slug)
	assert.Empty(t, installs[0].Version)
	assert.Equal(t, "temurin-17-jdk-x64-linux", installs[1].Slug)
	assert.Equal(t, "17", installs[1].Version)
	assert.Equal(t, "temurin-21-jdk-x64-linux", installs[2].Slug)
}

func TestStager_ReleaseFailureIsReported(t *testing.T) {
	home := t.TempDir()
	s := NewStager(home, locking.NewController(home, locking.WithMode(locking.ModeFallback)))
	coord := testCoordinate(t)
	marker := locking.MarkerPath(locking.InstallationScope(coord).LockPath(locking.LockRoot(home)))

	produce := func(ctx context.Context, stagingDir string) error {
		if err := writeFiles(map[string]string{"bin/java": "java", "release": "JAVA_VERSION=21"})(ctx, stagingDir); err != nil {
			return err
		}
		// The marker vanishes under the holder, as if swept by another process.
		return os.Remove(marker)
	}

	result, err := s.Install(context.Background(), coord, produce, LayoutVerifier())
	require.ErrorIs(t, err, errUtils.ErrLockRelease)
	assert.False(t, result.AlreadyInstalled)
	assert.Equal(t, s.InstallPath(coord), result.Path)
	assert.True(t, s.IsInstalled(coord), "the install was committed before the release failed")

	err = s.Uninstall(context.Background(), coord)
	require.NoError(t, err)
	assert.False(t, s.IsInstalled(coord))
}
