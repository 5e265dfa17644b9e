package courier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Client owns the local store, the pending-change ledger, the sync
// coordinator, the log syncer and the periodic scheduler for one profile.
type Client struct {
	store       *Store
	ledger      *Ledger
	coordinator *Coordinator
	prefs       *PreferencesRepository
	logs        *LogSyncer
	scheduler   *Scheduler
	gateway     Gateway
	config      Config
	log         zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	gateway Gateway
	log     zerolog.Logger
}

// WithGateway connects the client to a backend. Without one the client is
// offline: writes are stored and queued, and sync calls return ErrOffline.
func WithGateway(g Gateway) Option {
	return func(o *options) { o.gateway = g }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates a new Courier client. The persisted ledger is restored before
// New returns, so pending changes from a previous run are synced again.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := NewStore(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	ledger := NewLedger()
	pending, err := store.LoadPendingChanges()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("client: restore ledger: %w", err)
	}
	ledger.Restore(pending)

	log := o.log.With().Str("profile", cfg.Profile).Logger()

	prefs := newPreferencesRepository(store, ledger, log)
	coord := newCoordinator(store, ledger, prefs.writer, o.gateway, log)
	prefs.coord = coord
	prefs.userID = cfg.UserID
	prefs.syncOnWrite = cfg.SyncOnWrite
	prefs.syncTimeout = cfg.RequestTimeout

	c := &Client{
		store:       store,
		ledger:      ledger,
		coordinator: coord,
		prefs:       prefs,
		logs:        newLogSyncer(store, o.gateway, cfg.LogPushConcurrency, cfg.LogRetention, log),
		gateway:     o.gateway,
		config:      cfg,
		log:         log,
	}
	c.scheduler = NewScheduler(c.runSyncJob, cfg.SyncInterval, 2*cfg.RequestTimeout, log)

	if len(pending) > 0 {
		log.Info().Int("pending", len(pending)).Msg("restored pending preference changes")
	}

	if c.gateway != nil && cfg.AutoSync {
		if err := c.scheduler.Start(); err != nil {
			store.Close()
			return nil, fmt.Errorf("client: %w", err)
		}
	}

	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// Preferences returns the preference repository.
func (c *Client) Preferences() *PreferencesRepository {
	return c.prefs
}

// Scheduler returns the periodic sync scheduler.
func (c *Client) Scheduler() *Scheduler {
	return c.scheduler
}

// Store returns the underlying local store.
func (c *Client) Store() *Store {
	return c.store
}

// IsOffline reports whether no backend is configured.
func (c *Client) IsOffline() bool {
	return c.gateway == nil
}

// RecordCall appends a call log row, to be pushed by the next log sync.
func (c *Client) RecordCall(ctx context.Context, rec CallLog) (*CallLog, error) {
	return c.store.AppendCall(ctx, rec)
}

// RecordSMS appends an SMS log row, to be pushed by the next log sync.
func (c *Client) RecordSMS(ctx context.Context, rec SMSLog) (*SMSLog, error) {
	return c.store.AppendSMS(ctx, rec)
}

// SyncPreferences pushes pending preference changes for the configured user.
func (c *Client) SyncPreferences(ctx context.Context) error {
	return c.coordinator.Sync(ctx, c.config.UserID)
}

// ForceSync replaces local preferences with the backend's copy for the
// configured user.
func (c *Client) ForceSync(ctx context.Context) error {
	return c.coordinator.ForceSync(ctx, c.config.UserID)
}

// SyncLogs pushes unsynced call and SMS rows for the configured user.
func (c *Client) SyncLogs(ctx context.Context) (*LogSyncResult, error) {
	return c.logs.Sync(ctx, c.config.UserID)
}

// SyncNow runs the scheduler's job immediately: preference sync, then log
// sync. A failure in one does not skip the other; both errors are joined.
func (c *Client) SyncNow(ctx context.Context) error {
	return c.scheduler.SyncNow(ctx)
}

func (c *Client) runSyncJob(ctx context.Context) error {
	prefErr := c.SyncPreferences(ctx)
	if prefErr != nil {
		c.log.Warn().Err(prefErr).Int("pending", c.ledger.Count()).Msg("Sync failed, will retry automatically")
	}

	_, logErr := c.SyncLogs(ctx)
	if logErr != nil {
		c.log.Warn().Err(logErr).Msg("log sync failed")
	}
	return errors.Join(prefErr, logErr)
}

// Status returns preference sync status.
func (c *Client) Status() SyncStatus {
	return c.coordinator.Status()
}

// Stats returns store statistics.
func (c *Client) Stats() (*StoreStats, error) {
	return c.store.Stats()
}

// PurgeSyncedLogs deletes synced call and SMS rows older than cutoff.
func (c *Client) PurgeSyncedLogs(cutoff time.Time) (int64, error) {
	var total int64
	for _, kind := range LogKinds() {
		n, err := c.store.PurgeSyncedBefore(kind, cutoff)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// HealthCheck returns the health status of the client.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		StoreOK: true,
	}

	if _, err := c.store.Stats(); err != nil {
		status.StoreOK = false
		status.Healthy = false
		status.Error = err.Error()
		return status
	}

	if c.gateway != nil {
		_, err := c.gateway.HealthCheck(ctx)
		status.BackendReachable = err == nil
		if err != nil && status.Error == "" {
			status.Error = err.Error()
		}
	}

	return status
}

// Close stops the scheduler, makes a best-effort attempt to push pending
// preference changes, and closes the store. Changes that could not be
// pushed stay persisted for the next run.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.scheduler.Stop()
	c.prefs.wait()

	if c.gateway != nil && c.config.UserID > 0 && c.ledger.HasPending() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.coordinator.Sync(ctx, c.config.UserID); err != nil {
			c.log.Debug().Err(err).Msg("final flush failed; changes stay pending")
		}
	}

	return c.store.Close()
}
