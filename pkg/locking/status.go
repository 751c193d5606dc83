package locking

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	errUtils "github.com/kopi-vm/kopi/errors"
)

// LockState is what a status probe found for one lock file.
type LockState string

const (
	StateFree  LockState = "free"
	StateHeld  LockState = "held"
	StateStale LockState = "stale"
)

// LockEntry describes one lock file under the lock root.
type LockEntry struct {
	Path    string
	Backend Backend
	State   LockState
	Age     time.Duration
	// Lease is set for fallback locks with readable metadata.
	Lease *LeaseInfo
}

// Name is the entry path relative to root.
func (e LockEntry) Name(root string) string {
	if rel, err := filepath.Rel(root, e.Path); err == nil {
		return filepath.ToSlash(rel)
	}
	return e.Path
}

// ListLocks inspects every lock under lockRoot without modifying anything.
// A fallback marker reports its scope's lock path with the lease inside it.
// Remaining lock files are probed with a non-blocking advisory attempt; a lock held
// by this process through another descriptor also reports as held.
func ListLocks(lockRoot string, staleAfter time.Duration) ([]LockEntry, error) {
	now := time.Now()
	byPath := map[string]LockEntry{}
	var advisory []string

	err := filepath.WalkDir(lockRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		switch {
		case isMarker(path):
			entry := LockEntry{
				Path:    lockPathForMarker(path),
				Backend: BackendFallback,
				State:   StateHeld,
				Age:     now.Sub(info.ModTime()),
			}
			if staleAfter > 0 && entry.Age >= staleAfter {
				entry.State = StateStale
			}
			if lease, err := ReadLease(path); err == nil {
				entry.Lease = &lease
			}
			byPath[entry.Path] = entry
		case strings.HasSuffix(path, lockFileExt):
			if _, ok := byPath[path]; !ok {
				advisory = append(advisory, path)
				byPath[path] = LockEntry{Path: path, Backend: BackendAdvisory, Age: now.Sub(info.ModTime())}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrLockAcquire).
			WithCause(err).
			WithExplanationf("Could not list locks under %s", lockRoot).
			Err()
	}

	// A live marker replaces the lock file entry for its scope.
	for _, path := range advisory {
		if entry := byPath[path]; entry.Backend == BackendAdvisory {
			entry.State = probeAdvisory(path)
			byPath[path] = entry
		}
	}

	entries := make([]LockEntry, 0, len(byPath))
	for _, entry := range byPath {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func probeAdvisory(path string) LockState {
	probe := flock.New(path, flock.SetFlag(os.O_RDWR))
	locked, err := probe.TryLock()
	if err != nil || !locked {
		return StateHeld
	}
	_ = probe.Unlock()
	return StateFree
}
