package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	errUtils "github.com/kopi-vm/kopi/errors"
	httpClient "github.com/kopi-vm/kopi/pkg/http"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/pkg/retry"
	"github.com/kopi-vm/kopi/pkg/schema"
)

// DownloadsDirName holds downloaded archives under <home>/cache.
const DownloadsDirName = "downloads"

// Downloader fetches archives into a local cache directory, retrying transient failures.
type Downloader struct {
	client   httpClient.Client
	cacheDir string
	retry    schema.RetryConfig
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client httpClient.Client) DownloaderOption {
	return func(d *Downloader) {
		d.client = client
	}
}

// WithRetry sets the retry policy for failed downloads.
func WithRetry(config schema.RetryConfig) DownloaderOption {
	return func(d *Downloader) {
		d.retry = config
	}
}

// NewDownloader caches archives in cacheDir.
func NewDownloader(cacheDir string, opts ...DownloaderOption) *Downloader {
	defer perf.Track(nil, "installer.NewDownloader")()

	d := &Downloader{
		client:   httpClient.NewDefaultClient(httpClient.WithGitHubToken(httpClient.GetGitHubTokenFromEnv())),
		cacheDir: cacheDir,
		retry:    retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsRemote reports whether source is an http(s) URL rather than a local path.
func IsRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DownloadPath is where rawURL is cached: <cacheDir>/<hash>-<basename>. The hash
// keeps archives with the same file name from different hosts apart.
func (d *Downloader) DownloadPath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(d.cacheDir, hex.EncodeToString(sum[:4])+"-"+archiveBaseName(rawURL))
}

func archiveBaseName(rawURL string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		name = u.Path
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "archive"
	}
	return name
}

// Fetch returns the cached copy of rawURL, downloading it first if needed.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (string, error) {
	defer perf.Track(nil, "installer.Downloader.Fetch")()

	dest := d.DownloadPath(rawURL)
	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() {
		log.Debug("Using cached download", "url", rawURL, "path", dest)
		return dest, nil
	}

	if err := os.MkdirAll(d.cacheDir, defaultMkdirPermissions); err != nil {
		return "", errUtils.Build(errUtils.ErrDownload).
			WithCause(err).
			WithExplanationf("cannot create download cache %s", d.cacheDir).
			Err()
	}

	log.Info("Downloading archive", "url", rawURL)
	err := retry.WithPredicate(ctx, &d.retry, func() error {
		return d.download(ctx, rawURL, dest)
	}, func(err error) bool {
		return ctx.Err() == nil && !isHTTP404(err)
	})
	if err != nil {
		return "", err
	}
	log.Debug("Downloaded archive", "url", rawURL, "path", dest)
	return dest, nil
}

// Forget removes the cached copy of rawURL so the next Fetch downloads it again.
func (d *Downloader) Forget(rawURL string) {
	if err := os.Remove(d.DownloadPath(rawURL)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to remove cached download", "url", rawURL, "error", err)
	}
}

func (d *Downloader) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errUtils.Build(errUtils.ErrDownload).
			WithCause(errors.Join(errUtils.ErrHTTPRequestFailed, err)).
			WithContext("url", rawURL).
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return errUtils.Build(errUtils.ErrDownload).
			WithCause(errors.Join(errUtils.ErrHTTPRequestFailed, err)).
			WithContext("url", rawURL).
			Err()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return buildDownloadError(rawURL, resp.StatusCode)
	}

	if _, err := writeResponseToCache(resp.Body, dest); err != nil {
		return errUtils.Build(errUtils.ErrDownload).WithCause(err).WithContext("url", rawURL).Err()
	}
	return nil
}

// writeResponseToCache streams r into cachePath through a temporary sibling so a
// partial download never appears under the final name.
func writeResponseToCache(r io.Reader, cachePath string) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(cachePath), "."+filepath.Base(cachePath)+".*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	src := &readErrReader{r: r}
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		if src.err != nil {
			return "", fmt.Errorf("failed to read response body: %w", src.err)
		}
		return "", fmt.Errorf("failed to write %s: %w", cachePath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", cachePath, err)
	}
	if err := os.Rename(tmpName, cachePath); err != nil {
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}
	committed = true
	return cachePath, nil
}

// readErrReader remembers the last read error so it can be told apart from write errors.
type readErrReader struct {
	r   io.Reader
	err error
}

func (e *readErrReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		e.err = err
	}
	return n, err
}

func buildDownloadError(rawURL string, statusCode int) error {
	b := errUtils.Build(errUtils.ErrDownload).
		WithExplanationf("%s returned HTTP %d %s", rawURL, statusCode, http.StatusText(statusCode)).
		WithContext("url", rawURL).
		WithContext("status", statusCode)

	switch statusCode {
	case http.StatusNotFound:
		b = b.WithSentinel(errUtils.ErrHTTP404).WithHint("Check the archive URL; the server does not have it")
	case http.StatusUnauthorized, http.StatusForbidden:
		b = b.WithHintf("Set %s if the archive is hosted on GitHub and you are rate limited", httpClient.EnvGitHubToken)
	}
	return b.Err()
}

func isHTTP404(err error) bool {
	return errors.Is(err, errUtils.ErrHTTP404)
}

// DownloadProducer fetches rawURL through d and extracts it into the staging directory.
func DownloadProducer(d *Downloader, rawURL string) ProduceFunc {
	return func(ctx context.Context, stagingDir string) error {
		archivePath, err := d.Fetch(ctx, rawURL)
		if err != nil {
			return err
		}
		return ArchiveProducer(archivePath)(ctx, stagingDir)
	}
}

// NormalizeSource turns a local path into an absolute one and leaves URLs alone.
func NormalizeSource(source string) (string, error) {
	if IsRemote(source) || strings.TrimSpace(source) == "" {
		return source, nil
	}
	return filepath.Abs(source)
}
