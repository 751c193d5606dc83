package locking

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	old := time.Now().Add(-d)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweep_RemovesOldMarkerKeepsYoungStaging(t *testing.T) {
	home := t.TempDir()
	lockRoot := LockRoot(home)
	stagingRoot := filepath.Join(home, "jdks", ".staging")

	c := newTestController(home, ModeFallback)
	h, err := c.Acquire(context.Background(), testScope(t, "21"))
	require.NoError(t, err)
	marker := h.Path()
	// Simulate a crash: the handle is abandoned without release.
	h.cleanup.Stop()
	age(t, marker, time.Hour)

	young := filepath.Join(stagingRoot, "temurin-21-jdk-x64-linux-1234")
	require.NoError(t, os.MkdirAll(young, 0o755))

	report := Sweep(context.Background(), HygieneConfig{
		LockRoot:    lockRoot,
		StagingRoot: stagingRoot,
		StaleAfter:  10 * time.Minute,
	})

	assert.Equal(t, 1, report.RemovedMarkers)
	assert.Equal(t, 0, report.RemovedStaging)
	assert.Equal(t, 0, report.Errors)
	assert.NoFileExists(t, marker)
	assert.DirExists(t, young)

	// The scope is free again once the crashed holder's marker is gone.
	h, ok, err := newTestController(home, ModeFallback).TryAcquire(context.Background(), testScope(t, "21"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.Release())
}

func TestSweep_RemovesOrphanedStaging(t *testing.T) {
	home := t.TempDir()
	stagingRoot := filepath.Join(home, "jdks", ".staging")

	orphan := filepath.Join(stagingRoot, "temurin-21-jdk-x64-linux-dead")
	require.NoError(t, os.MkdirAll(filepath.Join(orphan, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(orphan, "bin", "java"), []byte("x"), 0o755))
	age(t, orphan, 2*time.Hour)

	report := Sweep(context.Background(), HygieneConfig{StagingRoot: stagingRoot, StaleAfter: time.Hour})

	assert.Equal(t, 1, report.RemovedStaging)
	assert.NoDirExists(t, orphan)
}

func TestSweep_LeavesAdvisoryLocksAndYoungMarkers(t *testing.T) {
	home := t.TempDir()
	lockRoot := LockRoot(home)

	advisory := newTestController(home, ModeAdvisory)
	h, err := advisory.Acquire(context.Background(), testScope(t, "17"))
	require.NoError(t, err)
	require.NoError(t, h.Release())
	age(t, h.Path(), 48*time.Hour)

	fallback := newTestController(home, ModeFallback)
	live, err := fallback.Acquire(context.Background(), testScope(t, "21"))
	require.NoError(t, err)
	defer live.Release()

	report := Sweep(context.Background(), HygieneConfig{LockRoot: lockRoot, StaleAfter: 10 * time.Minute})

	assert.Equal(t, 0, report.RemovedMarkers)
	assert.FileExists(t, h.Path())
	assert.FileExists(t, live.Path())
}

func TestSweep_MissingRoots(t *testing.T) {
	home := t.TempDir()

	report := Sweep(context.Background(), HygieneConfig{
		LockRoot:    filepath.Join(home, "nope"),
		StagingRoot: filepath.Join(home, "also-nope"),
	})

	assert.Equal(t, Report{Duration: report.Duration}, report)
}

func TestListLocks(t *testing.T) {
	home := t.TempDir()
	lockRoot := LockRoot(home)

	advisory := newTestController(home, ModeAdvisory)
	held, err := advisory.Acquire(context.Background(), testScope(t, "21"))
	require.NoError(t, err)
	defer held.Release()

	free, err := advisory.Acquire(context.Background(), testScope(t, "17"))
	require.NoError(t, err)
	require.NoError(t, free.Release())

	fallback := newTestController(home, ModeFallback)
	marker, err := fallback.Acquire(context.Background(), CacheWriterScope())
	require.NoError(t, err)
	defer marker.Release()

	entries, err := ListLocks(lockRoot, time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byName := map[string]LockEntry{}
	for _, e := range entries {
		byName[e.Name(lockRoot)] = e
	}

	cache := byName["cache.lock"]
	assert.Equal(t, BackendFallback, cache.Backend)
	assert.Equal(t, StateHeld, cache.State)
	require.NotNil(t, cache.Lease)
	assert.Equal(t, os.Getpid(), cache.Lease.PID)

	assert.Equal(t, StateHeld, byName["install/temurin/temurin-21-jdk-x64-linux.lock"].State)
	assert.Equal(t, StateFree, byName["install/temurin/temurin-17-jdk-x64-linux.lock"].State)
}

func TestListLocks_MissingRoot(t *testing.T) {
	entries, err := ListLocks(filepath.Join(t.TempDir(), "locks"), time.Hour)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListLocks_MarkerBesideAdvisoryFile(t *testing.T) {
	home := t.TempDir()
	lockRoot := LockRoot(home)
	scope := testScope(t, "21")

	advisory := newTestController(home, ModeAdvisory)
	h, err := advisory.Acquire(context.Background(), scope)
	require.NoError(t, err)
	require.NoError(t, h.Release())

	fallback := newTestController(home, ModeFallback)
	held, err := fallback.Acquire(context.Background(), scope)
	require.NoError(t, err)
	defer held.Release()

	entries, err := ListLocks(lockRoot, time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, scope.LockPath(lockRoot), entries[0].Path)
	assert.Equal(t, BackendFallback, entries[0].Backend)
	assert.Equal(t, StateHeld, entries[0].State)
}
