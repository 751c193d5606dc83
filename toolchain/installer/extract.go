package installer

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	errUtils "github.com/kopi-vm/kopi/errors"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
)

const (
	maxUnixPermissions    = 0o7777
	maxDecompressedSizeMB = 3000
	bufferSizeBytes       = 32 * 1024
	filenameKey           = "filename"
)

// ArchiveProducer returns a ProduceFunc that unpacks archivePath into the staging
// directory. A single top-level directory, as shipped by most vendors, is flattened.
func ArchiveProducer(archivePath string) ProduceFunc {
	return func(ctx context.Context, stagingDir string) error {
		defer perf.Track(nil, "installer.ArchiveProducer")()

		if err := Extract(ctx, archivePath, stagingDir); err != nil {
			return err
		}
		return flattenSingleRoot(stagingDir)
	}
}

// Extract unpacks a tar.gz, tar or zip archive into dest, detecting the format by content.
func Extract(ctx context.Context, archivePath, dest string) error {
	defer perf.Track(nil, "installer.Extract")()

	mime, err := mimetype.DetectFile(archivePath)
	if err != nil {
		return errUtils.Build(errUtils.ErrExtract).
			WithCause(err).
			WithExplanation("Could not detect the archive type").
			WithContext(filenameKey, filepath.Base(archivePath)).
			Err()
	}

	log.Debug("Detected archive type", "mime", mime.String(), filenameKey, filepath.Base(archivePath))

	switch {
	case mime.Is("application/zip"):
		return Unzip(ctx, archivePath, dest)
	case isGzipMime(mime):
		return ExtractTarGz(ctx, archivePath, dest)
	case mime.Is("application/x-tar"):
		return extractTarFile(ctx, archivePath, dest)
	default:
		return errUtils.Build(errUtils.ErrUnsupportedArchive).
			WithExplanationf("%s is %s, not a .tar.gz or .zip archive", filepath.Base(archivePath), mime.String()).
			WithHint("Download the JDK archive for your platform in tar.gz or zip format").
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}
}

// isGzipMime checks if the MIME type is a gzip variant.
func isGzipMime(mime *mimetype.MIME) bool {
	return mime.Is("application/x-gzip") || mime.Is("application/gzip")
}

// Unzip extracts a zip archive to a destination directory.
func Unzip(ctx context.Context, src, dest string) error {
	defer perf.Track(nil, "installer.Unzip")()

	const maxDecompressedSize = maxDecompressedSizeMB * 1024 * 1024

	r, err := zip.OpenReader(src)
	if err != nil {
		return extractErr(err, src)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractZipFile(f, dest, maxDecompressedSize); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, dest string, maxSize int64) error {
	fpath, err := validatePath(f.Name, dest)
	if err != nil {
		return err
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(fpath, defaultMkdirPermissions)
	}

	if err := os.MkdirAll(filepath.Dir(fpath), defaultMkdirPermissions); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return extractErr(err, f.Name)
	}
	defer rc.Close()

	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm())
	if err != nil {
		return extractErr(err, f.Name)
	}
	defer outFile.Close()

	return copyWithLimit(rc, outFile, f.Name, maxSize)
}

func validatePath(name, dest string) (string, error) {
	//nolint:gosec // G305: Path is validated by isSafePath below.
	fpath := filepath.Join(dest, name)
	if !isSafePath(fpath, dest) {
		return "", errUtils.Build(errUtils.ErrIllegalPath).
			WithExplanationf("Archive entry %q escapes the destination directory", name).
			WithExitCode(errUtils.ExitCodeVerification).
			Err()
	}
	return fpath, nil
}

// isSafePath reports whether path is dest or lies below it. Archives built from "."
// carry a "./" entry for the root itself.
func isSafePath(path, dest string) bool {
	cleanDest := filepath.Clean(dest)
	cleanPath := filepath.Clean(path)
	return cleanPath == cleanDest || strings.HasPrefix(cleanPath, cleanDest+string(os.PathSeparator))
}

func copyWithLimit(src io.Reader, dst io.Writer, name string, maxSize int64) error {
	var totalBytes int64
	buf := make([]byte, bufferSizeBytes)

	for {
		n, err := src.Read(buf)
		totalBytes += int64(n)

		if totalBytes > maxSize {
			return errUtils.Build(errUtils.ErrArchiveTooLarge).
				WithExplanationf("Decompressed size of %s exceeds %d MB", name, maxDecompressedSizeMB).
				Err()
		}

		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return extractErr(err, name)
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return extractErr(err, name)
		}
	}
	return nil
}

// ExtractTarGz extracts a .tar.gz file to the given destination directory.
func ExtractTarGz(ctx context.Context, src, dest string) error {
	defer perf.Track(nil, "installer.ExtractTarGz")()

	f, err := os.Open(src)
	if err != nil {
		return extractErr(err, src)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return extractErr(err, src)
	}
	defer gzr.Close()

	return extractTar(ctx, tar.NewReader(gzr), dest)
}

func extractTarFile(ctx context.Context, src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return extractErr(err, src)
	}
	defer f.Close()

	return extractTar(ctx, tar.NewReader(f), dest)
}

func extractTar(ctx context.Context, tr *tar.Reader, dest string) error {
	const maxDecompressedSize = maxDecompressedSizeMB * 1024 * 1024

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return extractErr(err, "tar stream")
		}

		if err := extractEntry(tr, header, dest, maxDecompressedSize); err != nil {
			return err
		}
	}
}

func extractEntry(tr *tar.Reader, header *tar.Header, dest string, maxSize int64) error {
	targetPath, err := validatePath(header.Name, dest)
	if err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return extractDir(targetPath, header)
	case tar.TypeReg:
		return extractFile(tr, targetPath, header, maxSize)
	case tar.TypeSymlink:
		return extractSymlink(targetPath, header, dest)
	default:
		log.Debug("Skipping unsupported tar entry", filenameKey, header.Name, "type", string(header.Typeflag))
		return nil
	}
}

func extractDir(path string, header *tar.Header) error {
	if header.Mode < 0 || header.Mode > maxUnixPermissions {
		return errUtils.Build(errUtils.ErrExtract).
			WithExplanationf("Invalid mode %o for %s", header.Mode, header.Name).
			Err()
	}
	// Owner needs write access to populate the directory.
	return os.MkdirAll(path, os.FileMode(header.Mode)|0o700)
}

func extractFile(tr *tar.Reader, path string, header *tar.Header, maxSize int64) error {
	if err := os.MkdirAll(filepath.Dir(path), defaultMkdirPermissions); err != nil {
		return extractErr(err, header.Name)
	}
	if header.Mode < 0 || header.Mode > math.MaxUint32 {
		return errUtils.Build(errUtils.ErrExtract).
			WithExplanationf("Mode out of range for %s: %d", header.Name, header.Mode).
			Err()
	}

	outFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode).Perm())
	if err != nil {
		return extractErr(err, header.Name)
	}
	defer outFile.Close()

	return copyWithLimit(tr, outFile, header.Name, maxSize)
}

// extractSymlink recreates a symlink whose target stays inside dest.
func extractSymlink(path string, header *tar.Header, dest string) error {
	target := header.Linkname
	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(filepath.Dir(path), target)
	}
	if filepath.IsAbs(target) || !isSafePath(resolved, dest) {
		return errUtils.Build(errUtils.ErrIllegalPath).
			WithExplanationf("Symlink %q points outside the archive (%s)", header.Name, target).
			WithExitCode(errUtils.ExitCodeVerification).
			Err()
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultMkdirPermissions); err != nil {
		return extractErr(err, header.Name)
	}
	if err := os.Symlink(target, path); err != nil {
		return extractErr(err, header.Name)
	}
	return nil
}

// flattenSingleRoot hoists the contents of a lone top-level directory into dir.
func flattenSingleRoot(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return extractErr(err, dir)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	root := filepath.Join(dir, entries[0].Name())
	children, err := os.ReadDir(root)
	if err != nil {
		return extractErr(err, root)
	}
	for _, child := range children {
		if child.Name() == entries[0].Name() {
			return nil
		}
	}

	for _, child := range children {
		if err := os.Rename(filepath.Join(root, child.Name()), filepath.Join(dir, child.Name())); err != nil {
			return extractErr(err, child.Name())
		}
	}
	if err := os.Remove(root); err != nil {
		return extractErr(err, root)
	}
	log.Debug("Flattened archive root", "root", entries[0].Name())
	return nil
}

func extractErr(err error, name string) error {
	return errUtils.Build(errUtils.ErrExtract).
		WithCause(err).
		WithContext(filenameKey, name).
		Err()
}
