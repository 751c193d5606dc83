package locking

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	errUtils "github.com/kopi-vm/kopi/errors"
	log "github.com/kopi-vm/kopi/pkg/logger"
)

// MarkerSuffix is appended to a scope's lock path to name its fallback marker.
const MarkerSuffix = ".marker"

const fallbackBackendName = "fallback"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LeaseInfo is the metadata written into fallback markers.
type LeaseInfo struct {
	LeaseID   string    `json:"lease_id"`
	Backend   string    `json:"backend"`
	PID       int       `json:"pid"`
	Scope     string    `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
}

// MarkerPath returns the fallback marker path for a scope's lock path.
func MarkerPath(lockPath string) string {
	return lockPath + MarkerSuffix
}

// ReadLease parses the lease metadata stored at path.
func ReadLease(path string) (LeaseInfo, error) {
	var info LeaseInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, errUtils.Build(errUtils.ErrFallbackMarkerCorrupt).
			WithCause(err).
			WithContext("path", path).
			Err()
	}
	return info, nil
}

func newLeaseID() string {
	return fmt.Sprintf("%d-%s", os.Getpid(), uuid.NewString())
}

// fallbackLock claims a lock by creating its marker exclusively, with the lease
// inside. The advisory lock file next to it is never touched, so a file left by an
// earlier advisory hold cannot look held. The marker survives a crash; hygiene
// removes it once it goes stale.
type fallbackLock struct {
	markerPath string
	scope      Scope
	leaseID    string
}

func newFallbackLock(lockPath string, scope Scope) *fallbackLock {
	return &fallbackLock{markerPath: MarkerPath(lockPath), scope: scope}
}

func (f *fallbackLock) tryLock() (bool, error) {
	leaseID := newLeaseID()

	file, err := os.OpenFile(f.markerPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, lockFilePerm)
	if err != nil {
		// A pending delete on Windows surfaces as permission denied.
		if errors.Is(err, os.ErrExist) || errors.Is(err, os.ErrPermission) {
			return false, nil
		}
		return false, errUtils.Build(errUtils.ErrLockAcquire).
			WithCause(err).
			WithContext("path", f.markerPath).
			Err()
	}

	err = writeLease(file, f.scope, leaseID)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		removeQuietly(f.markerPath)
		return false, errUtils.Build(errUtils.ErrLockAcquire).
			WithCause(err).
			WithContext("path", f.markerPath).
			Err()
	}

	f.leaseID = leaseID
	return true, nil
}

// unlock removes the marker, but only while it still carries our lease.
func (f *fallbackLock) unlock() error {
	if f.leaseID == "" {
		return errUtils.Build(errUtils.ErrLockNotHeld).WithContext("path", f.markerPath).Err()
	}

	info, err := ReadLease(f.markerPath)
	if err != nil {
		return errUtils.Build(errUtils.ErrLockRelease).
			WithCause(err).
			WithExplanation("The fallback marker disappeared or became unreadable while held").
			WithContext("path", f.markerPath).
			Err()
	}
	if info.LeaseID != f.leaseID {
		return errUtils.Build(errUtils.ErrLockRelease).
			WithExplanationf("The fallback lock is now owned by lease %s (pid %d)", info.LeaseID, info.PID).
			WithHint("Another process may have removed a lock it considered stale; check "+ConfigKeyStaleAfter).
			WithContext("path", f.markerPath).
			Err()
	}

	f.leaseID = ""
	if err := os.Remove(f.markerPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errUtils.Build(errUtils.ErrLockRelease).
			WithCause(err).
			WithContext("path", f.markerPath).
			Err()
	}
	return nil
}

func (f *fallbackLock) backend() Backend { return BackendFallback }

func (f *fallbackLock) path() string { return f.markerPath }

func writeLease(file *os.File, scope Scope, leaseID string) error {
	payload, err := json.MarshalIndent(LeaseInfo{
		LeaseID:   leaseID,
		Backend:   fallbackBackendName,
		PID:       os.Getpid(),
		Scope:     scope.Label(),
		CreatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}
	if _, err := file.Write(payload); err != nil {
		return err
	}
	return file.Sync()
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to remove fallback lock artifact", "path", path, "error", err)
	}
}

// isMarker reports whether name is a fallback marker file name.
func isMarker(name string) bool {
	return strings.HasSuffix(filepath.Base(name), MarkerSuffix)
}

// lockPathForMarker strips the marker suffix.
func lockPathForMarker(marker string) string {
	return strings.TrimSuffix(marker, MarkerSuffix)
}
