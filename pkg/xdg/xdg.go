package xdg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	adrg "github.com/adrg/xdg"
)

const (
	// HomeEnvVar overrides the kopi home directory.
	HomeEnvVar = "KOPI_HOME"

	defaultHomeDirName = ".kopi"
	homeDirPerm        = 0o755
)

// KopiHome returns the kopi home directory, creating it when missing.
// KOPI_HOME wins when set; a relative value is resolved against the working directory.
func KopiHome() (string, error) {
	home := strings.TrimSpace(os.Getenv(HomeEnvVar))
	if home == "" {
		adrg.Reload()
		home = filepath.Join(adrg.Home, defaultHomeDirName)
	}

	abs, err := filepath.Abs(home)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", home, err)
	}

	if err := os.MkdirAll(abs, homeDirPerm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", abs, err)
	}
	return abs, nil
}

// GetKopiDir returns home/subpath, creating it with perm.
func GetKopiDir(home, subpath string, perm os.FileMode) (string, error) {
	dir := home
	if subpath != "" {
		dir = filepath.Join(home, subpath)
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}
