package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/duration"
	"github.com/kopi-vm/kopi/pkg/filesystem"
	"github.com/kopi-vm/kopi/pkg/locking"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/pkg/schema"
)

// setting validates and converts a raw value for one key.
type setting func(raw string) (any, error)

var settings = map[string]setting{
	KeyLockingMode: func(raw string) (any, error) {
		mode, err := locking.ParseMode(raw)
		return string(mode), err
	},
	KeyLockingTimeout: func(raw string) (any, error) {
		if _, err := locking.ParseTimeout(raw); err != nil {
			return nil, err
		}
		return strings.TrimSpace(raw), nil
	},
	KeyLockingStaleAfter: durationSetting,
	KeyCacheMaxAge:       durationSetting,
	KeyLogsLevel: func(raw string) (any, error) {
		level, err := log.ParseLogLevel(raw)
		return string(level), err
	},
	KeyLogsFile:          stringSetting,
	KeySentryDSN:         stringSetting,
	KeySentryEnvironment: stringSetting,
	KeySentryEnabled: func(raw string) (any, error) {
		return strconv.ParseBool(strings.TrimSpace(raw))
	},
	KeyDownloadTimeout: func(raw string) (any, error) {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil || d <= 0 {
			return nil, errors.Join(errUtils.ErrInvalidDuration, err)
		}
		return d.String(), nil
	},
	KeyDownloadMaxAttempts: func(raw string) (any, error) {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("max_attempts must be a positive integer, got %q", raw)
		}
		return int64(n), nil
	},
}

func durationSetting(raw string) (any, error) {
	if _, err := duration.ParseDuration(raw); err != nil {
		return nil, err
	}
	return strings.TrimSpace(raw), nil
}

func stringSetting(raw string) (any, error) {
	return raw, nil
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	keys := lo.Keys(settings)
	slices.Sort(keys)
	return keys
}

// Writer edits <home>/config.toml in place, preserving keys it does not touch.
type Writer struct {
	path string
	fs   filesystem.FileSystem
}

// NewWriter returns a writer for the config file of kopiHome.
func NewWriter(kopiHome string, fsys filesystem.FileSystem) *Writer {
	if fsys == nil {
		fsys = filesystem.NewOSFileSystem()
	}
	return &Writer{path: Path(kopiHome), fs: fsys}
}

// Set validates value for key and writes it. The file is replaced atomically.
func (w *Writer) Set(key, value string) error {
	defer perf.Track(nil, "config.Writer.Set")()

	key = strings.ToLower(strings.TrimSpace(key))
	validate, ok := settings[key]
	if !ok {
		return errUtils.Build(errUtils.ErrUnknownConfigKey).
			WithExplanationf("%q is not a configuration key", key).
			WithHintf("Known keys: %s", strings.Join(Keys(), ", ")).
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}
	converted, err := validate(value)
	if err != nil {
		return errUtils.Build(errUtils.ErrWriteConfig).
			WithCause(err).
			WithExplanationf("Value %q is not valid for %s", value, key).
			WithExitCode(errUtils.ExitCodeUsage).
			Err()
	}

	doc, err := w.read()
	if err != nil {
		return err
	}
	setNested(doc, strings.Split(key, "."), converted)

	if err := w.write(doc); err != nil {
		return err
	}
	log.Debug("Updated config", "key", key, "path", w.path)
	return nil
}

// Unset removes key from the file. Removing a key that is not set is a no-op.
func (w *Writer) Unset(key string) error {
	defer perf.Track(nil, "config.Writer.Unset")()

	doc, err := w.read()
	if err != nil {
		return err
	}
	if !deleteNested(doc, strings.Split(strings.ToLower(key), ".")) {
		return nil
	}
	return w.write(doc)
}

func (w *Writer) read() (map[string]any, error) {
	doc := map[string]any{}
	data, err := w.fs.ReadFile(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, errUtils.Build(errUtils.ErrWriteConfig).WithCause(err).WithContext("path", w.path).Err()
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errUtils.Build(errUtils.ErrWriteConfig).
			WithCause(err).
			WithExplanationf("%s is not valid TOML", w.path).
			WithContext("path", w.path).
			Err()
	}
	return doc, nil
}

func (w *Writer) write(doc map[string]any) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return errUtils.Build(errUtils.ErrWriteConfig).WithCause(err).Err()
	}
	if err := w.fs.WriteFileAtomic(w.path, data, configFilePerm); err != nil {
		return errUtils.Build(errUtils.ErrWriteConfig).WithCause(err).WithContext("path", w.path).Err()
	}
	return nil
}

func setNested(doc map[string]any, path []string, value any) {
	for _, part := range path[:len(path)-1] {
		child, ok := doc[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			doc[part] = child
		}
		doc = child
	}
	doc[path[len(path)-1]] = value
}

func deleteNested(doc map[string]any, path []string) bool {
	for _, part := range path[:len(path)-1] {
		child, ok := doc[part].(map[string]any)
		if !ok {
			return false
		}
		doc = child
	}
	last := path[len(path)-1]
	if _, ok := doc[last]; !ok {
		return false
	}
	delete(doc, last)
	return true
}

// Render formats the effective configuration as TOML.
func Render(cfg *schema.Configuration) (string, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).Err()
	}
	return string(data), nil
}
