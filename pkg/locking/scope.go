package locking

import (
	"path/filepath"
)

const (
	// LocksDirName is the directory under the kopi home that holds all lock files.
	LocksDirName = "locks"

	installLocksDirName = "install"
	cacheLockFileName   = "cache.lock"
	lockFileExt         = ".lock"
	defaultSegment      = "default"
)

type scopeKind int

const (
	scopeInstallation scopeKind = iota + 1
	scopeCacheWriter
)

// Scope names the resource a lock protects: one installable coordinate, or the
// shared cache writer.
type Scope struct {
	kind       scopeKind
	coordinate Coordinate
}

// InstallationScope guards install and uninstall of one coordinate.
func InstallationScope(coordinate Coordinate) Scope {
	return Scope{kind: scopeInstallation, coordinate: coordinate}
}

// CacheWriterScope serializes writers of the metadata cache.
func CacheWriterScope() Scope {
	return Scope{kind: scopeCacheWriter}
}

// IsInstallation reports whether the scope guards a coordinate.
func (s Scope) IsInstallation() bool {
	return s.kind == scopeInstallation
}

// Coordinate returns the guarded coordinate and false for non-installation scopes.
func (s Scope) Coordinate() (Coordinate, bool) {
	return s.coordinate, s.kind == scopeInstallation
}

// Equal reports whether both scopes contend for the same resource.
func (s Scope) Equal(other Scope) bool {
	if s.kind != other.kind {
		return false
	}
	if s.kind == scopeInstallation {
		return s.coordinate.Equal(other.coordinate)
	}
	return true
}

// Label is the human-readable name used in messages ("installation temurin-21-jdk-x64-linux", "cache writer").
func (s Scope) Label() string {
	switch s.kind {
	case scopeInstallation:
		return "installation " + s.coordinate.Slug()
	case scopeCacheWriter:
		return "cache writer"
	default:
		return "unknown"
	}
}

func (s Scope) String() string {
	return s.Label()
}

// LockPath returns the scope's lock file under lockRoot.
func (s Scope) LockPath(lockRoot string) string {
	if s.kind == scopeInstallation {
		distribution := s.coordinate.Distribution
		if distribution == "" {
			distribution = defaultSegment
		}
		return filepath.Join(lockRoot, installLocksDirName, distribution, s.coordinate.Slug()+lockFileExt)
	}
	return filepath.Join(lockRoot, cacheLockFileName)
}

// LockRoot returns the lock directory for a kopi home.
func LockRoot(kopiHome string) string {
	return filepath.Join(kopiHome, LocksDirName)
}
