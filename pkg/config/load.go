package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	errUtils "github.com/kopi-vm/kopi/errors"
	"github.com/kopi-vm/kopi/pkg/locking"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
	"github.com/kopi-vm/kopi/pkg/schema"
)

// flagBindings maps persistent CLI flags onto config keys. The lock timeout is not
// bound here because the timeout resolver needs to know which source supplied it.
var flagBindings = map[string]string{
	"lock-mode": KeyLockingMode,
	"log-level": KeyLogsLevel,
}

// envBindings maps config keys onto their environment variables.
var envBindings = map[string]string{
	KeyLockingMode: locking.EnvLockMode,
	KeyLogsLevel:   EnvLogLevel,
}

// Path returns <home>/config.toml.
func Path(kopiHome string) string {
	return filepath.Join(kopiHome, FileName)
}

// Load merges, from lowest to highest priority: defaults, <home>/config.toml,
// KOPI_* environment variables and flags that were explicitly set. flags may be nil.
func Load(kopiHome string, flags *pflag.FlagSet) (*schema.Configuration, error) {
	defer perf.Track(nil, "config.Load")()

	v := viper.New()
	v.SetConfigType("toml")
	setDefaultConfiguration(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).WithContext("key", key).Err()
		}
	}
	if flags != nil {
		for flag, key := range flagBindings {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).WithContext("flag", flag).Err()
				}
			}
		}
	}

	path := Path(kopiHome)
	configFile, err := readConfigFile(v, path)
	if err != nil {
		return nil, err
	}

	cfg := &schema.Configuration{}
	err = v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrLoadConfig).
			WithCause(err).
			WithContext("path", path).
			Err()
	}

	cfg.KopiHome = kopiHome
	cfg.ConfigFile = configFile
	return cfg, nil
}

// setDefaultConfiguration sets default configuration for the viper instance.
func setDefaultConfiguration(v *viper.Viper) {
	v.SetDefault(KeyLockingMode, DefaultLockingMode)
	v.SetDefault(KeyLogsLevel, DefaultLogsLevel)
	v.SetDefault(KeyLogsFile, "/dev/stderr")
	v.SetDefault(KeyCacheMaxAge, DefaultCacheMaxAge)
	v.SetDefault(KeySentryEnabled, false)
}

// readConfigFile merges path into v. A missing file is not an error.
func readConfigFile(v *viper.Viper, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("Config file not found, using defaults", "path", path)
			return "", nil
		}
		return "", errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).WithContext("path", path).Err()
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return "", errUtils.Build(errUtils.ErrLoadConfig).
			WithCause(err).
			WithExplanationf("%s is not valid TOML", path).
			WithHint("Fix the file or remove it to fall back to the defaults").
			WithContext("path", path).
			Err()
	}
	log.Debug("Loaded config file", "path", path)
	return path, nil
}

// TimeoutInputs collects the raw lock timeout values by source. cliValue is the
// --lock-timeout flag value, empty when the flag was not given.
func TimeoutInputs(cfg *schema.Configuration, cliValue string) locking.TimeoutInputs {
	in := locking.TimeoutInputs{
		CLI: cliValue,
		Env: os.Getenv(locking.EnvLockTimeout),
	}
	if cfg != nil {
		in.Config = cfg.Locking.Timeout
	}
	return in
}
