package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scriptroots/internal/logging"
)

// clearEnv unsets every configuration variable for the test, restoring it
// afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		name := EnvPrefix + "_" + strings.ToUpper(k)
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()

	cfg, err := Load(Options{HomeDir: home})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".scriptroots"), cfg.StateDir)
	assert.Equal(t, filepath.Join(home, ".scriptroots", "settings.toml"), cfg.SettingsFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, logging.LevelInfo, cfg.Level())
	assert.Equal(t, time.Duration(0), cfg.LedgerFlushDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, 500*time.Millisecond, cfg.SettingsPollInterval)
	assert.Equal(t, 1024, cfg.CacheSize)
	assert.Equal(t, 64, cfg.NotifyBuffer)
	assert.False(t, cfg.CaseInsensitivePaths)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_ConfigFileInStateDir(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	state := filepath.Join(home, ".scriptroots")
	require.NoError(t, os.MkdirAll(state, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(state, "scriptroots.toml"), []byte(
		"log_level = 'debug'\nwatch_debounce = '250ms'\ncache_size = 16\n"), 0o644))

	cfg, err := Load(Options{HomeDir: home})
	require.NoError(t, err)

	assert.Equal(t, logging.LevelDebug, cfg.Level())
	assert.Equal(t, 250*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, filepath.Join(state, "scriptroots.toml"), cfg.ConfigFile)
}

func TestLoad_ExplicitYAMLFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("state_dir: ~/state\nnotify_buffer: 8\n"), 0o644))

	cfg, err := Load(Options{HomeDir: dir, ConfigFile: file})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "state"), cfg.StateDir)
	assert.Equal(t, filepath.Join(dir, "state", "settings.toml"), cfg.SettingsFile)
	assert.Equal(t, 8, cfg.NotifyBuffer)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(Options{HomeDir: t.TempDir(), ConfigFile: "/does/not/exist.toml"})
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "c.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"log_level": "warn", "cache_size": 5}`), 0o644))

	t.Setenv("SCRIPTROOTS_LOG_LEVEL", "error")
	t.Setenv("SCRIPTROOTS_CASE_INSENSITIVE_PATHS", "true")

	cfg, err := Load(Options{HomeDir: dir, ConfigFile: file})
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 5, cfg.CacheSize)
	assert.True(t, cfg.CaseInsensitivePaths)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCRIPTROOTS_LOG_LEVEL", "error")
	t.Setenv("SCRIPTROOTS_CACHE_SIZE", "7")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level=debug", "--ledger-flush-delay=2s"}))

	cfg, err := Load(Options{HomeDir: t.TempDir(), Flags: fs})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.LedgerFlushDelay)
	// Unchanged flags leave env values alone.
	assert.Equal(t, 7, cfg.CacheSize)
}

func TestLoad_ConfigFlag(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "c.toml")
	require.NoError(t, os.WriteFile(file, []byte("notify_buffer = 3\n"), 0o644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", file}))

	cfg, err := Load(Options{HomeDir: dir, Flags: fs})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.NotifyBuffer)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SCRIPTROOTS_NOTIFY_BUFFER=12\n"), 0o644))

	cfg, err := Load(Options{HomeDir: dir, EnvFiles: []string{filepath.Join(dir, "missing.env"), envFile}})
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.NotifyBuffer)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"log level", map[string]string{"SCRIPTROOTS_LOG_LEVEL": "loud"}},
		{"cache size", map[string]string{"SCRIPTROOTS_CACHE_SIZE": "0"}},
		{"notify buffer", map[string]string{"SCRIPTROOTS_NOTIFY_BUFFER": "-1"}},
		{"debounce", map[string]string{"SCRIPTROOTS_WATCH_DEBOUNCE": "-1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(Options{HomeDir: t.TempDir()})
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/h", expandHome("~", "/h"))
	assert.Equal(t, filepath.Join("/h", "x"), expandHome("~/x", "/h"))
	assert.Equal(t, "/abs", expandHome("/abs", "/h"))
	assert.Equal(t, "~user/x", expandHome("~user/x", "/h"))
}
