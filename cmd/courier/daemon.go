package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hyperengineering/courier"
	"github.com/hyperengineering/courier/internal/api"
	"github.com/hyperengineering/courier/internal/confwatch"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var daemonListen string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run background sync and the local control API",
	Long: `Run the sync scheduler and serve the local control API until interrupted.

The scheduler pushes pending preference changes and unsynced logs on the
configured interval. Edits to the config file's sync interval are applied
without a restart. Pending changes are flushed on shutdown.`,
	Example: `  courier daemon --backend-url https://api.example.com --user-id 42
  courier daemon --listen 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&daemonListen, "listen", "", "Control API address (default: 127.0.0.1:7878)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if daemonListen != "" {
		cfg.ListenAddr = daemonListen
	}

	s, err := openClient(cfg, true)
	if err != nil {
		return err
	}
	defer s.Close()
	log := s.logs.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.IsOffline() {
		log.Warn().Msg("no backend configured, changes will queue locally")
	}
	log.Info().
		Str("profile", cfg.Profile).
		Str("db", cfg.LocalPath).
		Dur("interval", cfg.SyncInterval).
		Msg("courier daemon started")

	g, gctx := errgroup.WithContext(ctx)

	srv := api.NewServer(cfg.ListenAddr, api.NewRouter(s.client, log), log)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if w := newConfigWatcher(log); w != nil {
		g.Go(func() error {
			return w.Run(gctx, func() { reloadConfig(s.client, log) })
		})
	}

	err = g.Wait()
	log.Info().Msg("courier daemon stopping")
	return err
}

// newConfigWatcher watches the config file when its directory exists.
func newConfigWatcher(log zerolog.Logger) *confwatch.Watcher {
	path, _ := configPath()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		log.Debug().Str("path", path).Msg("config directory missing, not watching")
		return nil
	}
	w, err := confwatch.New(path, confwatch.DefaultDebounce, log)
	if err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
		return nil
	}
	return w
}

// reloadConfig re-resolves the configuration with the usual precedence and
// applies a changed sync interval. A flag or COURIER_SYNC_INTERVAL still
// overrides the file. Other settings need a restart.
func reloadConfig(client *courier.Client, log zerolog.Logger) {
	next, err := loadConfig()
	if err != nil {
		log.Warn().Err(err).Msg("config reload failed, keeping current settings")
		return
	}
	if next.SyncInterval != client.Scheduler().Interval() {
		client.Scheduler().SetInterval(next.SyncInterval)
		log.Info().Dur("interval", next.SyncInterval).Msg("sync interval updated")
	}
}
