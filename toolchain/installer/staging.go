package installer

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/filesystem"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/locking"
	"github.com/kopi-vm/kopi/pkg/perf"
)

const (
	// JDKsDirName is the directory under the kopi home that holds installed JDKs.
	JDKsDirName = "jdks"
	// StagingDirName holds in-progress installs and removals.
	StagingDirName = ".staging"
	// MetadataFileName is written into each install directory at commit time.
	MetadataFileName = ".kopi-install.yaml"

	removingInfix           = "-removing-"
	defaultMkdirPermissions = 0o755
	metadataFilePermissions = 0o644
)

// ProduceFunc fills stagingDir with the contents of the install.
type ProduceFunc func(ctx context.Context, stagingDir string) error

// VerifyFunc checks a fully produced staging directory before commit.
type VerifyFunc func(ctx context.Context, stagingDir string) error

// Locker acquires scope locks. *locking.Controller implements it.
type Locker interface {
	Acquire(ctx context.Context, scope locking.Scope, opts ...locking.AcquireOption) (*locking.Handle, error)
}

// Metadata is persisted as .kopi-install.yaml in every committed install.
type Metadata struct {
	Slug         string    `yaml:"slug"`
	Distribution string    `yaml:"distribution"`
	Version      string    `yaml:"version"`
	Kind         string    `yaml:"kind"`
	OS           string    `yaml:"os"`
	Architecture string    `yaml:"architecture"`
	LibC         string    `yaml:"libc,omitempty"`
	JavaFX       bool      `yaml:"javafx,omitempty"`
	Tags         []string  `yaml:"tags,omitempty"`
	Source       string    `yaml:"source,omitempty"`
	SHA256       string    `yaml:"sha256,omitempty"`
	InstalledAt  time.Time `yaml:"installed_at"`
}

// Result describes the outcome of Install.
type Result struct {
	Path             string
	Slug             string
	AlreadyInstalled bool
	Duration         time.Duration
}

// Stager installs coordinates into <home>/jdks by staging next to the final
// location and committing with a single rename.
type Stager struct {
	home   string
	fs     filesystem.FileSystem
	locker Locker
	now    func() time.Time
}

// StagerOption customizes a Stager.
type StagerOption func(*Stager)

// WithFileSystem replaces the host filesystem.
func WithFileSystem(fsys filesystem.FileSystem) StagerOption {
	return func(s *Stager) {
		s.fs = fsys
	}
}

// NewStager returns a stager for kopiHome that serializes work through locker.
func NewStager(kopiHome string, locker Locker, opts ...StagerOption) *Stager {
	defer perf.Track(nil, "installer.NewStager")()

	s := &Stager{
		home:   kopiHome,
		fs:     filesystem.NewOSFileSystem(),
		locker: locker,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// JDKsDir is <home>/jdks.
func (s *Stager) JDKsDir() string {
	return filepath.Join(s.home, JDKsDirName)
}

// StagingRoot is <home>/jdks/.staging. It shares a filesystem with the install directories.
func (s *Stager) StagingRoot() string {
	return filepath.Join(s.JDKsDir(), StagingDirName)
}

// InstallPath is the final directory for coordinate.
func (s *Stager) InstallPath(coordinate locking.Coordinate) string {
	return filepath.Join(s.JDKsDir(), coordinate.Slug())
}

// IsInstalled reports whether the install directory exists. Existence is completion.
func (s *Stager) IsInstalled(coordinate locking.Coordinate) bool {
	info, err := s.fs.Stat(s.InstallPath(coordinate))
	return err == nil && info.IsDir()
}

// InstallOption adds detail to the recorded metadata.
type InstallOption func(*Metadata)

// WithSource records where the install came from.
func WithSource(source, sha256 string) InstallOption {
	return func(m *Metadata) {
		m.Source = source
		m.SHA256 = sha256
	}
}

// Install produces, verifies and commits coordinate. An existing install is returned
// as is without taking the lock. A failed lock release is joined into the returned
// error; the Result still describes a committed install.
func (s *Stager) Install(ctx context.Context, coordinate locking.Coordinate, produce ProduceFunc, verify VerifyFunc, opts ...InstallOption) (result Result, err error) {
	defer perf.Track(nil, "installer.Stager.Install")()

	start := s.now()
	slug := coordinate.Slug()
	finalPath := s.InstallPath(coordinate)
	result = Result{Path: finalPath, Slug: slug}

	if s.IsInstalled(coordinate) {
		log.Debug("Already installed", "slug", slug, "path", finalPath)
		result.AlreadyInstalled = true
		return result, nil
	}

	handle, err := s.locker.Acquire(ctx, locking.InstallationScope(coordinate))
	if err != nil {
		return result, err
	}
	defer func() {
		if releaseErr := handle.Release(); releaseErr != nil {
			log.Warn("Failed to release installation lock", "slug", slug, "error", releaseErr)
			err = errors.Join(err, releaseErr)
		}
	}()

	if s.IsInstalled(coordinate) {
		log.Debug("Installed by another process while waiting", "slug", slug)
		result.AlreadyInstalled = true
		return result, nil
	}

	stagingDir, err := s.createStagingDir(slug)
	if err != nil {
		return result, err
	}
	committed := false
	defer func() {
		if !committed {
			s.discard(stagingDir)
		}
	}()

	if err := produce(ctx, stagingDir); err != nil {
		return result, errUtils.Build(errUtils.ErrStaging).
			WithCause(err).
			WithContext("slug", slug).
			Err()
	}
	if err := ctx.Err(); err != nil {
		return result, errUtils.Build(errUtils.ErrStaging).WithCause(err).Err()
	}

	if verify != nil {
		if err := verify(ctx, stagingDir); err != nil {
			return result, errUtils.Build(errUtils.ErrVerification).
				WithCause(err).
				WithExplanationf("The staged installation of %s was discarded", slug).
				WithContext("slug", slug).
				WithExitCode(errUtils.ExitCodeVerification).
				Err()
		}
	}

	if err := s.writeMetadata(stagingDir, coordinate, opts); err != nil {
		return result, err
	}

	if err := s.fs.Rename(stagingDir, finalPath); err != nil {
		return result, errUtils.Build(errUtils.ErrCommitInstall).
			WithCause(err).
			WithContext("from", stagingDir).
			WithContext("to", finalPath).
			Err()
	}
	committed = true

	result.Duration = s.now().Sub(start)
	log.Info("Installed", "slug", slug, "path", finalPath)
	return result, nil
}

// Uninstall removes the install directory under the installation lock. The final
// path disappears with one rename; the tree is deleted afterwards.
func (s *Stager) Uninstall(ctx context.Context, coordinate locking.Coordinate) (err error) {
	defer perf.Track(nil, "installer.Stager.Uninstall")()

	slug := coordinate.Slug()
	if !s.IsInstalled(coordinate) {
		return notInstalled(slug)
	}

	handle, err := s.locker.Acquire(ctx, locking.InstallationScope(coordinate))
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := handle.Release(); releaseErr != nil {
			log.Warn("Failed to release installation lock", "slug", slug, "error", releaseErr)
			err = errors.Join(err, releaseErr)
		}
	}()

	if !s.IsInstalled(coordinate) {
		return notInstalled(slug)
	}

	if err := s.fs.MkdirAll(s.StagingRoot(), defaultMkdirPermissions); err != nil {
		return errUtils.Build(errUtils.ErrUninstall).WithCause(err).WithContext("slug", slug).Err()
	}
	removing := filepath.Join(s.StagingRoot(), slug+removingInfix+uuid.NewString())
	if err := s.fs.Rename(s.InstallPath(coordinate), removing); err != nil {
		return errUtils.Build(errUtils.ErrUninstall).
			WithCause(err).
			WithHint("Close any program running from this JDK and try again").
			WithContext("slug", slug).
			Err()
	}
	s.discard(removing)

	log.Info("Uninstalled", "slug", slug)
	return nil
}

// List returns metadata for every committed install, sorted by slug.
func (s *Stager) List() ([]Metadata, error) {
	defer perf.Track(nil, "installer.Stager.List")()

	entries, err := s.fs.ReadDir(s.JDKsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errUtils.Build(errUtils.ErrStaging).WithCause(err).Err()
	}

	var installs []Metadata
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		meta, err := s.ReadMetadata(filepath.Join(s.JDKsDir(), entry.Name()))
		if err != nil {
			log.Debug("Install has no readable metadata", "dir", entry.Name(), "error", err)
			meta = Metadata{Slug: entry.Name()}
		}
		installs = append(installs, meta)
	}
	return installs, nil
}

// ReadMetadata parses the metadata file of an install directory.
func (s *Stager) ReadMetadata(installDir string) (Metadata, error) {
	var meta Metadata
	data, err := s.fs.ReadFile(filepath.Join(installDir, MetadataFileName))
	if err != nil {
		return meta, err
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

func (s *Stager) createStagingDir(slug string) (string, error) {
	if err := s.fs.MkdirAll(s.StagingRoot(), defaultMkdirPermissions); err != nil {
		return "", errUtils.Build(errUtils.ErrStaging).
			WithCause(err).
			WithExplanationf("Could not create staging root %s", s.StagingRoot()).
			Err()
	}
	dir := filepath.Join(s.StagingRoot(), slug+"-"+uuid.NewString())
	if err := s.fs.MkdirAll(dir, defaultMkdirPermissions); err != nil {
		return "", errUtils.Build(errUtils.ErrStaging).WithCause(err).WithContext("dir", dir).Err()
	}
	log.Debug("Created staging directory", "dir", dir)
	return dir, nil
}

func (s *Stager) writeMetadata(stagingDir string, coordinate locking.Coordinate, opts []InstallOption) error {
	meta := Metadata{
		Slug:         coordinate.Slug(),
		Distribution: coordinate.Distribution,
		Version:      coordinate.Version,
		Kind:         coordinate.Kind,
		OS:           coordinate.OS,
		Architecture: coordinate.Architecture,
		LibC:         coordinate.LibC,
		JavaFX:       coordinate.JavaFX,
		Tags:         coordinate.Tags,
		InstalledAt:  s.now().UTC().Truncate(time.Second),
	}
	for _, opt := range opts {
		opt(&meta)
	}

	data, err := yaml.Marshal(&meta)
	if err != nil {
		return errUtils.Build(errUtils.ErrStaging).WithCause(err).Err()
	}
	if err := s.fs.WriteFileAtomic(filepath.Join(stagingDir, MetadataFileName), data, metadataFilePermissions); err != nil {
		return errUtils.Build(errUtils.ErrStaging).WithCause(err).WithContext("dir", stagingDir).Err()
	}
	return nil
}

// discard removes a staging directory. Leftovers are collected by the hygiene sweep.
func (s *Stager) discard(dir string) {
	if err := s.fs.RemoveAll(dir); err != nil {
		log.Warn("Failed to remove staging directory", "dir", dir, "error", err)
	}
}

func notInstalled(slug string) error {
	return errUtils.Build(errUtils.ErrNotInstalled).
		WithExplanationf("%s is not installed", slug).
		WithHint("Run 'kopi list' to see installed JDKs").
		WithContext("slug", slug).
		Err()
}
