package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hyperengineering/courier"
	"github.com/hyperengineering/courier/internal/gateway"
	"github.com/hyperengineering/courier/internal/logging"
	"github.com/hyperengineering/courier/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgDBPath     string
	cfgBackendURL string
	cfgUserID     int64
	cfgDeviceID   string
	cfgProfile    string
	cfgConfigPath string
	outputFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Courier - offline-first preference and call log sync",
	Long: `Courier keeps a device's preferences and call/SMS logs in a local
SQLite store and synchronizes them with the backend whenever it is reachable.

Writes always succeed locally. Pending changes are pushed on the next sync,
either manually (courier sync) or by the background daemon (courier daemon).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case "text", "json", "yaml":
			return nil
		default:
			return fmt.Errorf("invalid --output %q: use text, json or yaml", outputFormat)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db-path", "", "Path to local database (default: derived from profile)")
	rootCmd.PersistentFlags().StringVar(&cfgBackendURL, "backend-url", "", "Backend base URL (empty: offline mode)")
	rootCmd.PersistentFlags().Int64Var(&cfgUserID, "user-id", 0, "User whose preferences and logs are synced")
	rootCmd.PersistentFlags().StringVar(&cfgDeviceID, "device-id", "", "Device identifier sent to the backend (default: hostname)")
	rootCmd.PersistentFlags().StringVar(&cfgProfile, "profile", "", "Local profile (default: COURIER_PROFILE or \"default\")")
	rootCmd.PersistentFlags().StringVar(&cfgConfigPath, "config", "", "Config file (default: ~/.courier/config.toml if present)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json or yaml")
}

// configPath returns the config file to read and whether it was asked for
// explicitly. The default file is optional; an explicit one is not.
func configPath() (string, bool) {
	if cfgConfigPath != "" {
		return cfgConfigPath, true
	}
	if v := os.Getenv("COURIER_CONFIG"); v != "" {
		return v, true
	}
	return store.DefaultConfigPath(), false
}

// loadConfig resolves configuration with precedence
// flags > environment > config file > defaults.
func loadConfig() (courier.Config, error) {
	cfg := courier.DefaultConfig()
	// Derived from the final profile below.
	cfg.LocalPath = ""

	path, explicit := configPath()
	fileCfg, err := courier.LoadConfigFile(path, cfg)
	switch {
	case err == nil:
		cfg = fileCfg
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, err
	}

	cfg = mergeEnv(cfg, courier.ConfigFromEnv())

	if cfgProfile != "" {
		cfg.Profile = cfgProfile
	}
	if cfgDBPath != "" {
		cfg.LocalPath = cfgDBPath
	}
	if cfgBackendURL != "" {
		cfg.BackendURL = cfgBackendURL
	}
	if cfgUserID != 0 {
		cfg.UserID = cfgUserID
	}
	if cfgDeviceID != "" {
		cfg.DeviceID = cfgDeviceID
	}

	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

// mergeEnv overlays every field set in env onto cfg.
func mergeEnv(cfg, env courier.Config) courier.Config {
	if env.Profile != "" {
		cfg.Profile = env.Profile
	}
	if env.LocalPath != "" {
		cfg.LocalPath = env.LocalPath
	}
	if env.BackendURL != "" {
		cfg.BackendURL = env.BackendURL
	}
	if env.UserID != 0 {
		cfg.UserID = env.UserID
	}
	if env.DeviceID != "" {
		cfg.DeviceID = env.DeviceID
	}
	if env.SyncInterval != 0 {
		cfg.SyncInterval = env.SyncInterval
	}
	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}
	if env.LogPath != "" {
		cfg.LogPath = env.LogPath
	}
	if env.Debug {
		cfg.Debug = true
	}
	if env.ListenAddr != "" {
		cfg.ListenAddr = env.ListenAddr
	}
	return cfg
}

// session is an open client plus the log file behind it.
type session struct {
	client *courier.Client
	logs   *logging.LogData
}

func (s *session) Close() error {
	err := s.client.Close()
	if lerr := s.logs.Close(); err == nil {
		err = lerr
	}
	return err
}

// openClient builds the logger, the backend gateway and the client for cfg.
// One-shot commands pass background=false so no scheduler is started.
func openClient(cfg courier.Config, background bool) (*session, error) {
	if !background {
		cfg.AutoSync = false
		cfg.SyncOnWrite = false
	}

	level := cfg.LogLevel
	switch {
	case cfg.Debug:
		level = "debug"
	case !background && cfg.LogPath == "" && logging.ParseLevel(level) < zerolog.WarnLevel:
		// Keep one-shot output readable.
		level = "warn"
	}
	build := logging.New().Level(level).FromWriter(os.Stderr).Console(isStderrTTY())
	if cfg.LogPath != "" {
		build = build.FromPath(cfg.LogPath)
	}
	logs, err := build.Make()
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	opts := []courier.Option{courier.WithLogger(logs.Logger)}
	if !cfg.IsOffline() {
		gw := gateway.NewHTTPClient(cfg.BackendURL, cfg.DeviceID, cfg.RequestTimeout, logs.Logger)
		opts = append(opts, courier.WithGateway(gw))
	}

	client, err := courier.New(cfg, opts...)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return &session{client: client, logs: logs}, nil
}

// withClient loads config, opens a one-shot client and runs fn with it.
func withClient(fn func(c *courier.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openClient(cfg, false)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s.client)
}
