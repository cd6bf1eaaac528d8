// Package config loads the scriptroots application configuration.
//
// Values come, highest precedence first, from command-line flags,
// SCRIPTROOTS_* environment variables (optionally seeded from .env files),
// a scriptroots.{toml,yaml,json} file, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/scriptroots/internal/logging"
)

// EnvPrefix prefixes every environment variable the configuration reads.
const EnvPrefix = "SCRIPTROOTS"

// Configuration keys. Flag names use the same words joined with dashes.
const (
	KeyStateDir             = "state_dir"
	KeySettingsFile         = "settings_file"
	KeyLogLevel             = "log_level"
	KeyLedgerFlushDelay     = "ledger_flush_delay"
	KeyWatchDebounce        = "watch_debounce"
	KeySettingsPollInterval = "settings_poll_interval"
	KeyCacheSize            = "cache_size"
	KeyNotifyBuffer         = "notify_buffer"
	KeyCaseInsensitivePaths = "case_insensitive_paths"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the application configuration.
type Config struct {
	// StateDir holds persisted root data and, by default, the settings file.
	StateDir string `mapstructure:"state_dir"`

	// SettingsFile is the linked-project settings file.
	SettingsFile string `mapstructure:"settings_file"`

	LogLevel string `mapstructure:"log_level"`

	// LedgerFlushDelay defers ledger writes after a file change.
	LedgerFlushDelay time.Duration `mapstructure:"ledger_flush_delay"`

	WatchDebounce        time.Duration `mapstructure:"watch_debounce"`
	SettingsPollInterval time.Duration `mapstructure:"settings_poll_interval"`

	// CacheSize bounds the resolved-configuration cache.
	CacheSize int `mapstructure:"cache_size"`

	// NotifyBuffer is the async notification queue length.
	NotifyBuffer int `mapstructure:"notify_buffer"`

	// CaseInsensitivePaths folds path case when comparing. Defaults to the
	// platform convention.
	CaseInsensitivePaths bool `mapstructure:"case_insensitive_paths"`

	// ConfigFile is the file the values were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// Level returns the parsed log level.
func (c *Config) Level() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	if c.StateDir == "" {
		return fmt.Errorf("%w: state dir is empty", ErrInvalid)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("%w: cache size %d", ErrInvalid, c.CacheSize)
	}
	if c.NotifyBuffer < 0 {
		return fmt.Errorf("%w: notify buffer %d", ErrInvalid, c.NotifyBuffer)
	}
	for name, d := range map[string]time.Duration{
		KeyLedgerFlushDelay:     c.LedgerFlushDelay,
		KeyWatchDebounce:        c.WatchDebounce,
		KeySettingsPollInterval: c.SettingsPollInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalid, name)
		}
	}
	return nil
}

// Options controls where Load looks.
type Options struct {
	// ConfigFile, when set, must exist and is read instead of searching the
	// state dir.
	ConfigFile string

	// Flags are bound over every other source. Flags not changed on the
	// command line do not override.
	Flags *pflag.FlagSet

	// EnvFiles are loaded into the process environment before reading it.
	// Missing files are skipped. Variables already set are kept.
	EnvFiles []string

	// HomeDir replaces os.UserHomeDir for the default state dir and "~".
	HomeDir string

	// CaseInsensitiveDefault is the default for CaseInsensitivePaths.
	CaseInsensitiveDefault bool
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "configuration file (toml, yaml or json)")
	fs.String(flagName(KeyStateDir), "", "state directory (default ~/.scriptroots)")
	fs.String(flagName(KeySettingsFile), "", "linked-project settings file (default <state-dir>/settings.toml)")
	fs.String(flagName(KeyLogLevel), "info", "log level: debug, info, warn, error")
	fs.Duration(flagName(KeyLedgerFlushDelay), 0, "delay before modification ledgers are written")
	fs.Duration(flagName(KeyWatchDebounce), 100*time.Millisecond, "quiet period before a file change is reported")
	fs.Duration(flagName(KeySettingsPollInterval), 500*time.Millisecond, "settings file poll interval")
	fs.Int(flagName(KeyCacheSize), 1024, "resolved configuration cache size")
	fs.Int(flagName(KeyNotifyBuffer), 64, "notification queue length")
	fs.Bool(flagName(KeyCaseInsensitivePaths), false, "compare paths case-insensitively")
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

var keys = []string{
	KeyStateDir,
	KeySettingsFile,
	KeyLogLevel,
	KeyLedgerFlushDelay,
	KeyWatchDebounce,
	KeySettingsPollInterval,
	KeyCacheSize,
	KeyNotifyBuffer,
	KeyCaseInsensitivePaths,
}

// Load builds the configuration from all sources.
func Load(opts Options) (*Config, error) {
	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	home := opts.HomeDir
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		home = h
	}

	v := viper.New()
	v.SetDefault(KeyStateDir, filepath.Join(home, ".scriptroots"))
	v.SetDefault(KeySettingsFile, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLedgerFlushDelay, time.Duration(0))
	v.SetDefault(KeyWatchDebounce, 100*time.Millisecond)
	v.SetDefault(KeySettingsPollInterval, 500*time.Millisecond)
	v.SetDefault(KeyCacheSize, 1024)
	v.SetDefault(KeyNotifyBuffer, 64)
	v.SetDefault(KeyCaseInsensitivePaths, opts.CaseInsensitiveDefault)

	v.SetEnvPrefix(EnvPrefix)
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	configFile := opts.ConfigFile
	if opts.Flags != nil {
		for _, k := range keys {
			if f := opts.Flags.Lookup(flagName(k)); f != nil {
				if err := v.BindPFlag(k, f); err != nil {
					return nil, err
				}
			}
		}
		if f := opts.Flags.Lookup("config"); f != nil && f.Changed {
			configFile = f.Value.String()
		}
	}

	if configFile != "" {
		v.SetConfigFile(expandHome(configFile, home))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("scriptroots")
		v.AddConfigPath(expandHome(v.GetString(KeyStateDir), home))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	cfg.StateDir = expandHome(cfg.StateDir, home)
	if cfg.SettingsFile == "" {
		cfg.SettingsFile = filepath.Join(cfg.StateDir, "settings.toml")
	}
	cfg.SettingsFile = expandHome(cfg.SettingsFile, home)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func expandHome(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}
