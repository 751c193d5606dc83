package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"

	errUtils "github.com/kopi-vm/kopi/errors"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
)

const (
	// DefaultSmokeCommand runs the staged java launcher.
	DefaultSmokeCommand = "bin/java -version"

	smokeTimeout = 30 * time.Second
)

// Verifiers runs every non-nil verifier in order and stops at the first failure.
func Verifiers(verifiers ...VerifyFunc) VerifyFunc {
	return func(ctx context.Context, stagingDir string) error {
		for _, verify := range verifiers {
			if verify == nil {
				continue
			}
			if err := verify(ctx, stagingDir); err != nil {
				return err
			}
		}
		return nil
	}
}

// FileSHA256 returns the lowercase hex SHA-256 of a file.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumVerifier compares the SHA-256 of archivePath with expected (hex, any case).
func ChecksumVerifier(archivePath, expected string) VerifyFunc {
	return func(_ context.Context, _ string) error {
		defer perf.Track(nil, "installer.ChecksumVerifier")()

		actual, err := FileSHA256(archivePath)
		if err != nil {
			return errUtils.Build(errUtils.ErrChecksumMismatch).
				WithCause(err).
				WithContext(filenameKey, filepath.Base(archivePath)).
				Err()
		}
		if !strings.EqualFold(actual, strings.TrimSpace(expected)) {
			return errUtils.Build(errUtils.ErrChecksumMismatch).
				WithExplanationf("Expected sha256 %s but %s has %s", strings.ToLower(expected), filepath.Base(archivePath), actual).
				WithHint("Download the archive again; it may be incomplete or tampered with").
				WithExitCode(errUtils.ExitCodeVerification).
				Err()
		}
		log.Debug("Checksum verified", filenameKey, filepath.Base(archivePath))
		return nil
	}
}

// LayoutVerifier requires the staged tree to contain a java launcher under bin/.
func LayoutVerifier() VerifyFunc {
	return func(_ context.Context, stagingDir string) error {
		launcher := filepath.Join(stagingDir, "bin", executableName("java"))
		info, err := os.Stat(launcher)
		if err != nil || info.IsDir() {
			return errUtils.Build(errUtils.ErrVerification).
				WithExplanation("The archive does not contain bin/java at its root").
				WithHint("Check that the archive is a JDK or JRE build for this platform").
				WithExitCode(errUtils.ExitCodeVerification).
				Err()
		}
		return nil
	}
}

// SmokeVerifier runs command inside the staging directory. The first word is
// resolved against the staging directory when it is a relative path.
func SmokeVerifier(command string) VerifyFunc {
	return func(ctx context.Context, stagingDir string) error {
		defer perf.Track(nil, "installer.SmokeVerifier")()

		args, err := shell.Fields(command, nil)
		if err != nil || len(args) == 0 {
			return errUtils.Build(errUtils.ErrSmokeTestFailed).
				WithCause(err).
				WithExplanationf("Smoke command %q could not be parsed", command).
				WithExitCode(errUtils.ExitCodeUsage).
				Err()
		}

		program := args[0]
		if !filepath.IsAbs(program) && strings.ContainsRune(program, '/') {
			program = filepath.Join(stagingDir, filepath.FromSlash(program))
			if _, statErr := os.Stat(program); statErr != nil && runtime.GOOS == "windows" {
				program += ".exe"
			}
		}

		ctx, cancel := context.WithTimeout(ctx, smokeTimeout)
		defer cancel()

		//nolint:gosec // G204: The command is supplied by the user invoking kopi.
		cmd := exec.CommandContext(ctx, program, args[1:]...)
		cmd.Dir = stagingDir
		cmd.Env = append(os.Environ(), "JAVA_HOME="+stagingDir)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return errUtils.Build(errUtils.ErrSmokeTestFailed).
				WithCause(err).
				WithExplanationf("`%s` failed: %s", command, strings.TrimSpace(string(output))).
				WithExitCode(errUtils.ExitCodeVerification).
				Err()
		}
		log.Debug("Smoke test passed", "command", command)
		return nil
	}
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
