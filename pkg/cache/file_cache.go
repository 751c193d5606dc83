package cache

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/filesystem"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
)

const (
	// DirName is the cache directory under the kopi home.
	DirName = "cache"
	// FileName is the metadata cache file inside DirName.
	FileName = "metadata.json"

	// DefaultCacheDirPerm is the default permission for the cache directory.
	DefaultCacheDirPerm = 0o755
	// DefaultFilePerm is the permission of metadata.json.
	DefaultFilePerm = 0o600

	// DefaultMaxAge is how old the cache may get before `kopi cache show` flags it.
	DefaultMaxAge = 30 * 24 * time.Hour
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store reads and writes <home>/cache/metadata.json. Reads never lock; every write
// runs under the cache writer lock and replaces the file with one rename.
type Store struct {
	path string
	fs   filesystem.FileSystem
	lock *writerLock
	now  func() time.Time
}

// StoreOption is a functional option for configuring Store.
type StoreOption func(*Store)

// WithFileSystem sets a custom filesystem implementation.
// This is primarily useful for testing.
func WithFileSystem(fs filesystem.FileSystem) StoreOption {
	return func(s *Store) {
		s.fs = fs
	}
}

// WithClock overrides the time source used for LastUpdated stamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns the metadata cache store for kopiHome.
func NewStore(kopiHome string, locker Locker, opts ...StoreOption) *Store {
	defer perf.Track(nil, "cache.NewStore")()

	s := &Store{
		path: filepath.Join(kopiHome, DirName, FileName),
		fs:   filesystem.NewOSFileSystem(),
		lock: newWriterLock(locker),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of metadata.json.
func (s *Store) Path() string {
	return s.path
}

// Load reads the cache without locking. A missing file returns (nil, false, nil).
func (s *Store) Load() (*MetadataCache, bool, error) {
	defer perf.Track(nil, "cache.Store.Load")()

	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, errUtils.Build(errUtils.ErrCacheRead).
			WithCause(err).
			WithContext("path", s.path).
			Err()
	}

	var c MetadataCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, false, errUtils.Build(errUtils.ErrCacheUnmarshal).
			WithCause(err).
			WithHint("Run 'kopi cache refresh' to rebuild the metadata cache").
			WithContext("path", s.path).
			Err()
	}
	if c.Distributions == nil {
		c.Distributions = map[string]DistributionCache{}
	}
	return &c, true, nil
}

// Save replaces the cache file with c under the cache writer lock.
func (s *Store) Save(ctx context.Context, c *MetadataCache) error {
	defer perf.Track(nil, "cache.Store.Save")()

	return s.lock.withLock(ctx, func() error {
		return s.write(c)
	})
}

// Update loads the current cache, applies fn and writes the result, all under the
// cache writer lock so concurrent updates are not lost. fn receives an empty cache
// when none exists yet.
func (s *Store) Update(ctx context.Context, fn func(*MetadataCache) error) error {
	defer perf.Track(nil, "cache.Store.Update")()

	return s.lock.withLock(ctx, func() error {
		c, ok, err := s.Load()
		if err != nil {
			return err
		}
		if !ok {
			c = New(s.now())
		}
		if err := fn(c); err != nil {
			return err
		}
		c.LastUpdated = s.now().UTC()
		return s.write(c)
	})
}

// Refresh replaces the cache with packages read from a JSON document. The document
// is either a full cache or a bare list of packages.
func (s *Store) Refresh(ctx context.Context, sourcePath string) (*MetadataCache, error) {
	defer perf.Track(nil, "cache.Store.Refresh")()

	data, err := s.fs.ReadFile(sourcePath)
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrCacheRead).
			WithCause(err).
			WithContext("source", sourcePath).
			Err()
	}

	return s.RefreshData(ctx, data, sourcePath)
}

// RefreshData is Refresh for a document already in memory. source names it in errors.
func (s *Store) RefreshData(ctx context.Context, data []byte, source string) (*MetadataCache, error) {
	defer perf.Track(nil, "cache.Store.RefreshData")()

	c, err := s.decodeSource(data)
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrCacheUnmarshal).
			WithCause(err).
			WithExplanationf("%s is neither a metadata cache nor a list of packages", source).
			WithContext("source", source).
			Err()
	}

	if err := s.Save(ctx, c); err != nil {
		return nil, err
	}
	log.Info("Refreshed metadata cache", "distributions", len(c.Distributions), "packages", c.TotalPackages())
	return c, nil
}

func (s *Store) decodeSource(data []byte) (*MetadataCache, error) {
	var packages []Package
	if err := json.Unmarshal(data, &packages); err == nil {
		return FromPackages(packages, s.now()), nil
	}

	var c MetadataCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Distributions == nil {
		c.Distributions = map[string]DistributionCache{}
	}
	c.Version = FormatVersion
	c.LastUpdated = s.now().UTC()
	return &c, nil
}

// write must be called with the cache writer lock held.
func (s *Store) write(c *MetadataCache) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errUtils.Build(errUtils.ErrCacheMarshal).WithCause(err).Err()
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), DefaultCacheDirPerm); err != nil {
		return errUtils.Build(errUtils.ErrCacheWrite).
			WithCause(err).
			WithContext("path", filepath.Dir(s.path)).
			Err()
	}
	if err := s.fs.WriteFileAtomic(s.path, data, DefaultFilePerm); err != nil {
		return errUtils.Build(errUtils.ErrCacheWrite).
			WithCause(err).
			WithContext("path", s.path).
			Err()
	}
	log.Debug("Wrote metadata cache", "path", s.path, "bytes", len(data))
	return nil
}
