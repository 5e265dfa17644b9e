package courier

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hyperengineering/courier/internal/store"
)

// Config configures the Courier client.
type Config struct {
	// Profile is the local profile to operate against. Each profile has its
	// own database under ~/.courier/profiles/<profile>/.
	// If empty, resolved using profile resolution (explicit > COURIER_PROFILE env > "default").
	Profile string

	// LocalPath is the path to the local SQLite database.
	// If empty, LocalPath is derived from Profile.
	LocalPath string

	// BackendURL is the base URL of the REST backend.
	// If empty, operates in offline-only mode.
	BackendURL string

	// UserID identifies the user whose preferences and logs are synced.
	UserID int64

	// DeviceID identifies this device to the backend.
	// Defaults to hostname if not set.
	DeviceID string

	// SyncInterval is how often the scheduler runs a sync pass.
	// Defaults to 5 minutes.
	SyncInterval time.Duration

	// RequestTimeout bounds every backend request.
	// Defaults to 30 seconds.
	RequestTimeout time.Duration

	// AutoSync enables the periodic scheduler.
	// Defaults to true.
	AutoSync bool

	// SyncOnWrite triggers an opportunistic sync after each preference write.
	// Defaults to true.
	SyncOnWrite bool

	// LogPushConcurrency bounds parallel history uploads.
	// Defaults to 4.
	LogPushConcurrency int

	// LogRetention is how long synced call/SMS rows are kept.
	// Zero keeps them forever.
	LogRetention time.Duration

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string

	// LogPath is a file to write logs to, rotated by size.
	// Defaults to stderr if empty.
	LogPath string

	// Debug enables verbose logging of all backend communication.
	Debug bool

	// ListenAddr is the address of the local control API started by the daemon.
	ListenAddr string
}

// Default values.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultLogRetention   = 30 * 24 * time.Hour
	DefaultListenAddr     = "127.0.0.1:7878"
)

// DefaultConfig returns a Config with sensible defaults.
// Profile defaults to "default", and LocalPath is derived from Profile.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	return Config{
		Profile:            "default",
		LocalPath:          store.ProfileDBPath("default"),
		DeviceID:           hostname,
		SyncInterval:       DefaultSyncInterval,
		RequestTimeout:     DefaultRequestTimeout,
		AutoSync:           true,
		SyncOnWrite:        true,
		LogPushConcurrency: DefaultLogPushConcurrency,
		LogRetention:       DefaultLogRetention,
		LogLevel:           "info",
		ListenAddr:         DefaultListenAddr,
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	COURIER_PROFILE        → Profile
//	COURIER_DB_PATH        → LocalPath
//	COURIER_BACKEND_URL    → BackendURL
//	COURIER_USER_ID        → UserID
//	COURIER_DEVICE_ID      → DeviceID
//	COURIER_SYNC_INTERVAL  → SyncInterval (Go duration, e.g. "5m")
//	COURIER_LOG_LEVEL      → LogLevel
//	COURIER_LOG_PATH       → LogPath
//	COURIER_DEBUG          → Debug (any non-empty value enables)
//	COURIER_LISTEN_ADDR    → ListenAddr
//
// Malformed numeric or duration values are ignored.
func ConfigFromEnv() Config {
	cfg := Config{
		Profile:    os.Getenv("COURIER_PROFILE"),
		LocalPath:  os.Getenv("COURIER_DB_PATH"),
		BackendURL: os.Getenv("COURIER_BACKEND_URL"),
		DeviceID:   os.Getenv("COURIER_DEVICE_ID"),
		LogLevel:   os.Getenv("COURIER_LOG_LEVEL"),
		LogPath:    os.Getenv("COURIER_LOG_PATH"),
		Debug:      os.Getenv("COURIER_DEBUG") != "",
		ListenAddr: os.Getenv("COURIER_LISTEN_ADDR"),
	}
	if v := os.Getenv("COURIER_USER_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.UserID = id
		}
	}
	if v := os.Getenv("COURIER_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncInterval = d
		}
	}
	return cfg
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to SQLite database"}
	}

	if c.Profile != "" {
		if err := store.ValidateProfileID(c.Profile); err != nil {
			return &ValidationError{Field: "Profile", Message: err.Error()}
		}
	}

	if c.BackendURL != "" {
		if !strings.HasPrefix(c.BackendURL, "http://") && !strings.HasPrefix(c.BackendURL, "https://") {
			return &ValidationError{Field: "BackendURL", Message: "must be an http or https URL"}
		}
	}

	if c.UserID < 0 {
		return &ValidationError{Field: "UserID", Message: "must be non-negative"}
	}

	if c.SyncInterval < 0 {
		return &ValidationError{Field: "SyncInterval", Message: "must be non-negative"}
	}

	if c.RequestTimeout < 0 {
		return &ValidationError{Field: "RequestTimeout", Message: "must be non-negative"}
	}

	if c.LogPushConcurrency < 0 {
		return &ValidationError{Field: "LogPushConcurrency", Message: "must be non-negative"}
	}

	if c.LogRetention < 0 {
		return &ValidationError{Field: "LogRetention", Message: "must be non-negative"}
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "LogLevel", Message: "must be debug, info, warn or error"}
	}

	return nil
}

// IsOffline returns true if the client operates in offline-only mode.
// Offline mode is determined by BackendURL being empty.
func (c *Config) IsOffline() bool {
	return c.BackendURL == ""
}

// WithDefaults fills in default values for unset fields.
// Profile resolution: explicit Profile field > COURIER_PROFILE env > "default".
// LocalPath is derived from the resolved Profile if not explicitly set.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Profile == "" {
		resolved, err := store.ResolveProfile("")
		if err == nil {
			c.Profile = resolved
		} else {
			c.Profile = "default"
		}
	}

	if c.LocalPath == "" {
		c.LocalPath = store.ProfileDBPath(c.Profile)
	}

	if c.SyncInterval == 0 {
		c.SyncInterval = defaults.SyncInterval
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.LogPushConcurrency == 0 {
		c.LogPushConcurrency = defaults.LogPushConcurrency
	}
	if c.DeviceID == "" {
		c.DeviceID = defaults.DeviceID
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaults.ListenAddr
	}

	return c
}

// fileConfig mirrors the TOML layout of a config file.
type fileConfig struct {
	Profile   string `toml:"profile"`
	LocalPath string `toml:"db_path"`

	Backend struct {
		URL            string `toml:"url"`
		UserID         int64  `toml:"user_id"`
		DeviceID       string `toml:"device_id"`
		RequestTimeout string `toml:"request_timeout"`
	} `toml:"backend"`

	Sync struct {
		Interval       string `toml:"interval"`
		AutoSync       bool   `toml:"auto_sync"`
		SyncOnWrite    bool   `toml:"sync_on_write"`
		LogConcurrency int    `toml:"log_concurrency"`
		LogRetention   string `toml:"log_retention"`
	} `toml:"sync"`

	Log struct {
		Level string `toml:"level"`
		Path  string `toml:"path"`
		Debug bool   `toml:"debug"`
	} `toml:"log"`

	Daemon struct {
		Listen string `toml:"listen"`
	} `toml:"daemon"`
}

// LoadConfigFile reads a TOML config file and merges it over base. Keys
// absent from the file keep base's value. Durations are Go duration
// strings ("5m", "30s", "720h").
//
// Values explicitly present in the file are validated before merging, so
// "interval = \"0s\"" is an error rather than silently meaning "default".
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	md, err := toml.Decode(string(data), &fc)
	if err != nil {
		return base, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := base
	if md.IsDefined("profile") {
		cfg.Profile = fc.Profile
	}
	if md.IsDefined("db_path") {
		cfg.LocalPath = fc.LocalPath
	}
	if md.IsDefined("backend", "url") {
		cfg.BackendURL = fc.Backend.URL
	}
	if md.IsDefined("backend", "user_id") {
		if fc.Backend.UserID <= 0 {
			return base, &ValidationError{Field: "backend.user_id", Message: "must be positive"}
		}
		cfg.UserID = fc.Backend.UserID
	}
	if md.IsDefined("backend", "device_id") {
		cfg.DeviceID = fc.Backend.DeviceID
	}
	if md.IsDefined("backend", "request_timeout") {
		if cfg.RequestTimeout, err = parsePositiveDuration("backend.request_timeout", fc.Backend.RequestTimeout); err != nil {
			return base, err
		}
	}
	if md.IsDefined("sync", "interval") {
		if cfg.SyncInterval, err = parsePositiveDuration("sync.interval", fc.Sync.Interval); err != nil {
			return base, err
		}
	}
	if md.IsDefined("sync", "auto_sync") {
		cfg.AutoSync = fc.Sync.AutoSync
	}
	if md.IsDefined("sync", "sync_on_write") {
		cfg.SyncOnWrite = fc.Sync.SyncOnWrite
	}
	if md.IsDefined("sync", "log_concurrency") {
		if fc.Sync.LogConcurrency < 1 {
			return base, &ValidationError{Field: "sync.log_concurrency", Message: "must be >= 1"}
		}
		cfg.LogPushConcurrency = fc.Sync.LogConcurrency
	}
	if md.IsDefined("sync", "log_retention") {
		d, err := time.ParseDuration(fc.Sync.LogRetention)
		if err != nil || d < 0 {
			return base, &ValidationError{Field: "sync.log_retention", Message: "must be a non-negative duration"}
		}
		cfg.LogRetention = d
	}
	if md.IsDefined("log", "level") {
		cfg.LogLevel = fc.Log.Level
	}
	if md.IsDefined("log", "path") {
		cfg.LogPath = fc.Log.Path
	}
	if md.IsDefined("log", "debug") {
		cfg.Debug = fc.Log.Debug
	}
	if md.IsDefined("daemon", "listen") {
		cfg.ListenAddr = fc.Daemon.Listen
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return base, &ValidationError{Field: undecoded[0].String(), Message: "unknown config key"}
	}

	return cfg, nil
}

func parsePositiveDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, &ValidationError{Field: field, Message: "must be a positive duration"}
	}
	return d, nil
}
