package toolchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/cache"
	"github.com/kopi-vm/kopi/pkg/duration"
	"github.com/kopi-vm/kopi/pkg/locking"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/toolchain/installer"
)

// InstallOptions are the inputs of `kopi install`.
type InstallOptions struct {
	// Spec is the `<distribution>@<version>` argument.
	Spec string
	// From is a local archive path or an http(s) URL. Empty looks the package up in the metadata cache.
	From string
	// SHA256 is the expected archive checksum, if known.
	SHA256 string
	// Smoke overrides the smoke command run against the staged JDK.
	Smoke    string
	NoSmoke  bool
	Platform PlatformOptions
}

// RunInstall installs one package atomically. Installing something that is already
// present is a no-op.
func RunInstall(ctx context.Context, env *Environment, opts InstallOptions) (installer.Result, error) {
	defer perf.Track(nil, "toolchain.RunInstall")()

	spec, err := ParsePackageSpec(opts.Spec)
	if err != nil {
		return installer.Result{}, err
	}

	source, checksum := opts.From, opts.SHA256
	if source == "" {
		pkg, err := lookupPackage(env, spec, opts.Platform)
		if err != nil {
			return installer.Result{}, err
		}
		spec.Distribution = strings.ToLower(pkg.Distribution)
		source = pkg.DownloadURL
		if checksum == "" && strings.EqualFold(pkg.ChecksumType, "sha256") {
			checksum = pkg.Checksum
		}
	}
	if source, err = installer.NormalizeSource(source); err != nil {
		return installer.Result{}, errUtils.Build(errUtils.ErrInvalidPackageSpec).
			WithCause(err).
			WithContext("from", opts.From).
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}

	coord, err := opts.Platform.Coordinate(spec)
	if err != nil {
		return installer.Result{}, err
	}

	archivePath, produce := source, installer.ArchiveProducer(source)
	remote := installer.IsRemote(source)
	if remote {
		archivePath, produce = env.Downloader.DownloadPath(source), installer.DownloadProducer(env.Downloader, source)
	}

	log.Debug("Installing", "coordinate", coord.Slug(), "source", source, "checksum", checksum != "")
	result, err := env.Stager.Install(ctx, coord, produce, buildVerifier(archivePath, checksum, opts), installer.WithSource(source, checksum))
	if err != nil {
		if remote && isBadArchive(err) {
			env.Downloader.Forget(source)
		}
		return result, err
	}

	if result.AlreadyInstalled {
		_, _ = fmt.Fprintf(env.Out, "%s %s is already installed at %s\n", env.Styles.Muted.Render("•"), coord.Slug(), result.Path)
		return result, nil
	}
	_, _ = fmt.Fprintf(env.Out, "%s Installed %s to %s in %s\n",
		env.Styles.Success.Render("✓"), coord.Slug(), result.Path, duration.Format(result.Duration))
	return result, nil
}

// isBadArchive reports failures caused by the archive content, after which a cached
// download must not be reused.
func isBadArchive(err error) bool {
	return errors.Is(err, errUtils.ErrChecksumMismatch) ||
		errors.Is(err, errUtils.ErrUnsupportedArchive) ||
		errors.Is(err, errUtils.ErrExtract)
}

func buildVerifier(archivePath, checksum string, opts InstallOptions) installer.VerifyFunc {
	var verifiers []installer.VerifyFunc
	if checksum != "" {
		verifiers = append(verifiers, installer.ChecksumVerifier(archivePath, checksum))
	}
	verifiers = append(verifiers, installer.LayoutVerifier())

	switch {
	case opts.NoSmoke:
	case !opts.Platform.IsHost():
		log.Debug("Skipping smoke test for a foreign platform", "os", opts.Platform.OS, "arch", opts.Platform.Arch)
	default:
		command := opts.Smoke
		if command == "" {
			command = installer.DefaultSmokeCommand
		}
		verifiers = append(verifiers, installer.SmokeVerifier(command))
	}
	return installer.Verifiers(verifiers...)
}

// lookupPackage resolves spec against the metadata cache when no --from was given.
func lookupPackage(env *Environment, spec PackageSpec, platform PlatformOptions) (cache.Package, error) {
	metadata, ok, err := env.Cache.Load()
	if err != nil {
		return cache.Package{}, err
	}
	if !ok {
		return cache.Package{}, errUtils.Build(errUtils.ErrPackageNotFound).
			WithExplanationf("No metadata cache at %s and no archive given", env.Cache.Path()).
			WithHint("Pass `--from <archive or URL>`, or run `kopi cache refresh --from <file>` first").
			WithContext("spec", spec.String()).
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}

	goos := lo.CoalesceOrEmpty(platform.OS, locking.HostOS())
	arch := lo.CoalesceOrEmpty(platform.Arch, locking.HostArch())
	matches := metadata.Find(spec.Distribution, spec.Version, goos, arch)
	if len(matches) == 0 {
		return cache.Package{}, errUtils.Build(errUtils.ErrPackageNotFound).
			WithExplanationf("%s is not in the metadata cache for %s/%s", spec, goos, arch).
			WithHintf("Known distributions: %s", strings.Join(metadata.DistributionNames(), ", ")).
			WithHint("Pass `--from <archive or URL>` to install from a specific archive").
			WithContext("spec", spec.String()).
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}
	log.Debug("Resolved package from metadata cache", "spec", spec.String(), "version", matches[0].Version, "url", matches[0].DownloadURL)
	return matches[0], nil
}
