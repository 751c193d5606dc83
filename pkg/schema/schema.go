package schema

import "time"

// Configuration is the merged kopi configuration (defaults, config file, environment, flags).
type Configuration struct {
	// KopiHome is resolved at load time and never read from the config file.
	KopiHome string `yaml:"-" json:"-" toml:"-" mapstructure:"-"`
	// ConfigFile is the path of the file that was loaded, empty when none existed.
	ConfigFile string `yaml:"-" json:"-" toml:"-" mapstructure:"-"`

	Locking  Locking        `yaml:"locking" json:"locking" toml:"locking" mapstructure:"locking"`
	Logs     Logs           `yaml:"logs" json:"logs" toml:"logs" mapstructure:"logs"`
	Errors   ErrorsConfig   `yaml:"errors" json:"errors" toml:"errors" mapstructure:"errors"`
	Cache    CacheConfig    `yaml:"cache" json:"cache" toml:"cache" mapstructure:"cache"`
	Download DownloadConfig `yaml:"download" json:"download" toml:"download,omitempty" mapstructure:"download"`
}

// Locking configures cross-process lock behavior.
type Locking struct {
	// Mode is auto, advisory or fallback.
	Mode string `yaml:"mode" json:"mode" toml:"mode" mapstructure:"mode"`
	// Timeout is a number of seconds, a duration such as 5m, 0 for no wait, or infinite.
	Timeout string `yaml:"timeout" json:"timeout" toml:"timeout" mapstructure:"timeout"`
	// StaleAfter overrides the hygiene threshold for fallback markers and staging directories.
	StaleAfter string `yaml:"stale_after,omitempty" json:"stale_after,omitempty" toml:"stale_after,omitempty" mapstructure:"stale_after"`
}

type Logs struct {
	File  string `yaml:"file,omitempty" json:"file,omitempty" toml:"file,omitempty" mapstructure:"file"`
	Level string `yaml:"level" json:"level" toml:"level" mapstructure:"level"`
}

type ErrorsConfig struct {
	Sentry SentryConfig `yaml:"sentry" json:"sentry" toml:"sentry" mapstructure:"sentry"`
}

type SentryConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" toml:"enabled" mapstructure:"enabled"`
	DSN         string  `yaml:"dsn,omitempty" json:"dsn,omitempty" toml:"dsn,omitempty" mapstructure:"dsn"`
	Environment string  `yaml:"environment,omitempty" json:"environment,omitempty" toml:"environment,omitempty" mapstructure:"environment"`
	SampleRate  float64 `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty" toml:"sample_rate,omitempty" mapstructure:"sample_rate"`
	Debug       bool    `yaml:"debug,omitempty" json:"debug,omitempty" toml:"debug,omitempty" mapstructure:"debug"`
}

// CacheConfig configures the metadata cache.
type CacheConfig struct {
	// MaxAge after which `kopi cache refresh` is suggested, as a duration string.
	MaxAge string `yaml:"max_age" json:"max_age" toml:"max_age" mapstructure:"max_age"`
}

// DownloadConfig controls archive downloads for `kopi install --from <url>`.
type DownloadConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout" toml:"timeout" mapstructure:"timeout"`
	Retry   RetryConfig   `yaml:"retry" json:"retry" toml:"retry" mapstructure:"retry"`
}

type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryConfig describes how failed operations are retried.
type RetryConfig struct {
	MaxAttempts     int             `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts" mapstructure:"max_attempts"`
	BackoffStrategy BackoffStrategy `yaml:"backoff_strategy" json:"backoff_strategy" toml:"backoff_strategy" mapstructure:"backoff_strategy"`
	InitialDelay    time.Duration   `yaml:"initial_delay" json:"initial_delay" toml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay        time.Duration   `yaml:"max_delay" json:"max_delay" toml:"max_delay" mapstructure:"max_delay"`
	RandomJitter    bool            `yaml:"random_jitter" json:"random_jitter" toml:"random_jitter" mapstructure:"random_jitter"`
	Multiplier      float64         `yaml:"multiplier" json:"multiplier" toml:"multiplier" mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration   `yaml:"max_elapsed_time" json:"max_elapsed_time" toml:"max_elapsed_time" mapstructure:"max_elapsed_time"`
}
