package filesystem

import (
	"os"
)

// FileSystem is the subset of filesystem operations the cache and installer depend on.
//
//go:generate go run go.uber.org/mock/mockgen@latest -source=$GOFILE -destination=mock_$GOFILE -package=$GOPACKAGE
type FileSystem interface {
	// Stat returns file info.
	Stat(name string) (os.FileInfo, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// MkdirTemp creates a uniquely named directory inside dir.
	MkdirTemp(dir, pattern string) (string, error)

	// ReadFile reads a whole file.
	ReadFile(name string) ([]byte, error)

	// ReadDir lists a directory sorted by name.
	ReadDir(name string) ([]os.DirEntry, error)

	// WriteFileAtomic replaces name with data so readers see either the old or the new content.
	WriteFileAtomic(name string, data []byte, perm os.FileMode) error

	// Rename moves oldpath to newpath. Within one filesystem this is atomic.
	Rename(oldpath, newpath string) error

	// Remove removes a file or empty directory.
	Remove(name string) error

	// RemoveAll removes a path and any children.
	RemoveAll(path string) error
}
