package courier

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("COURIER_HOME", t.TempDir())
	cfg := DefaultConfig()

	assert.Equal(t, "default", cfg.Profile)
	assert.NotEmpty(t, cfg.LocalPath)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.True(t, cfg.AutoSync)
	assert.True(t, cfg.SyncOnWrite)
	assert.Equal(t, DefaultLogPushConcurrency, cfg.LogPushConcurrency)
	assert.Equal(t, DefaultLogRetention, cfg.LogRetention)
	assert.True(t, cfg.IsOffline())
	require.NoError(t, cfg.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("COURIER_PROFILE", "work")
	t.Setenv("COURIER_DB_PATH", "/tmp/courier.db")
	t.Setenv("COURIER_BACKEND_URL", "https://api.example.com")
	t.Setenv("COURIER_USER_ID", "42")
	t.Setenv("COURIER_DEVICE_ID", "pixel-8")
	t.Setenv("COURIER_SYNC_INTERVAL", "90s")
	t.Setenv("COURIER_LOG_LEVEL", "debug")
	t.Setenv("COURIER_DEBUG", "1")

	cfg := ConfigFromEnv()
	assert.Equal(t, "work", cfg.Profile)
	assert.Equal(t, "/tmp/courier.db", cfg.LocalPath)
	assert.Equal(t, "https://api.example.com", cfg.BackendURL)
	assert.Equal(t, int64(42), cfg.UserID)
	assert.Equal(t, "pixel-8", cfg.DeviceID)
	assert.Equal(t, 90*time.Second, cfg.SyncInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.IsOffline())
}

func TestConfigFromEnv_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("COURIER_USER_ID", "abc")
	t.Setenv("COURIER_SYNC_INTERVAL", "often")

	cfg := ConfigFromEnv()
	assert.Zero(t, cfg.UserID)
	assert.Zero(t, cfg.SyncInterval)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{LocalPath: "/tmp/x.db"}

	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"missing path", func(c *Config) { c.LocalPath = "" }, "LocalPath"},
		{"bad profile", func(c *Config) { c.Profile = "a--b" }, "Profile"},
		{"bad url", func(c *Config) { c.BackendURL = "ftp://x" }, "BackendURL"},
		{"negative user", func(c *Config) { c.UserID = -1 }, "UserID"},
		{"negative interval", func(c *Config) { c.SyncInterval = -time.Second }, "SyncInterval"},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, "RequestTimeout"},
		{"negative concurrency", func(c *Config) { c.LogPushConcurrency = -1 }, "LogPushConcurrency"},
		{"negative retention", func(c *Config) { c.LogRetention = -time.Hour }, "LogRetention"},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, "LogLevel"},
	}

	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mut(&cfg)
			err := cfg.Validate()
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("COURIER_HOME", home)
	t.Setenv("COURIER_PROFILE", "lab")

	cfg := Config{}.WithDefaults()
	assert.Equal(t, "lab", cfg.Profile)
	assert.Equal(t, filepath.Join(home, "profiles", "lab", "courier.db"), cfg.LocalPath)
	assert.Equal(t, DefaultSyncInterval, cfg.SyncInterval)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)

	explicit := Config{Profile: "other", LocalPath: "/tmp/explicit.db"}.WithDefaults()
	assert.Equal(t, "other", explicit.Profile)
	assert.Equal(t, "/tmp/explicit.db", explicit.LocalPath)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
profile = "home"

[backend]
url = "https://courier.example.com"
user_id = 17
device_id = "tablet"
request_timeout = "10s"

[sync]
interval = "2m"
auto_sync = false
log_concurrency = 8
log_retention = "168h"

[log]
level = "warn"

[daemon]
listen = "127.0.0.1:9000"
`)

	base := Config{LocalPath: "/tmp/base.db", SyncOnWrite: true, AutoSync: true}
	cfg, err := LoadConfigFile(path, base)
	require.NoError(t, err)

	assert.Equal(t, "home", cfg.Profile)
	assert.Equal(t, "/tmp/base.db", cfg.LocalPath, "absent keys keep the base value")
	assert.Equal(t, "https://courier.example.com", cfg.BackendURL)
	assert.Equal(t, int64(17), cfg.UserID)
	assert.Equal(t, "tablet", cfg.DeviceID)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval)
	assert.False(t, cfg.AutoSync)
	assert.True(t, cfg.SyncOnWrite)
	assert.Equal(t, 8, cfg.LogPushConcurrency)
	assert.Equal(t, 168*time.Hour, cfg.LogRetention)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"zero interval", "[sync]\ninterval = \"0s\"\n", "sync.interval"},
		{"bad timeout", "[backend]\nrequest_timeout = \"soon\"\n", "backend.request_timeout"},
		{"non-positive user", "[backend]\nuser_id = 0\n", "backend.user_id"},
		{"zero concurrency", "[sync]\nlog_concurrency = 0\n", "sync.log_concurrency"},
		{"negative retention", "[sync]\nlog_retention = \"-1h\"\n", "sync.log_retention"},
		{"unknown key", "[sync]\nturbo = true\n", "sync.turbo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFile(writeConfigFile(t, tt.content), Config{})
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoadConfigFile_MissingAndMalformed(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.toml"), Config{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfigFile(writeConfigFile(t, "this is = = not toml"), Config{})
	assert.Error(t, err)
}
