package courier

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// syncSession is the transient state of one coordinator pass.
type syncSession struct {
	id        string
	userID    int64
	snapshot  LedgerSnapshot
	startedAt time.Time
}

func newSyncSession(userID int64, snap LedgerSnapshot) *syncSession {
	return &syncSession{
		id:        ulid.Make().String(),
		userID:    userID,
		snapshot:  snap,
		startedAt: time.Now(),
	}
}

// Coordinator runs preference sync passes against the backend.
//
// At most one pass runs at a time. Concurrent Sync calls for the same user
// join the pass already in flight and share its result, so they never issue
// a second request.
type Coordinator struct {
	store   *Store
	ledger  *Ledger
	writer  *preferenceWriter
	gateway Gateway
	log     zerolog.Logger

	mu      sync.Mutex
	group   singleflight.Group
	syncing atomic.Bool

	statusMu sync.RWMutex
	lastSync time.Time
	lastErr  error
}

func newCoordinator(store *Store, ledger *Ledger, writer *preferenceWriter, gw Gateway, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		store:   store,
		ledger:  ledger,
		writer:  writer,
		gateway: gw,
		log:     log.With().Str("component", "coordinator").Logger(),
	}
	if t, err := store.metadataTime(metaLastSync); err == nil {
		c.lastSync = t
	}
	return c
}

// Sync pushes every pending preference change for userID as one batch.
//
// Process:
//  1. Take the coordinator lock (or join the pass in flight for userID)
//  2. Snapshot the ledger; an empty snapshot returns nil with no request
//  3. POST the snapshot to /preferences/sync
//  4. On success, clear exactly the snapshotted revisions and record last_sync
//
// On any failure the ledger is left untouched and the error is returned.
// There is no retry here; the scheduler's next tick is the retry.
func (c *Coordinator) Sync(ctx context.Context, userID int64) error {
	if c.gateway == nil {
		return ErrOffline
	}
	if userID <= 0 {
		return ErrInvalidUserID
	}

	_, err, shared := c.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		return nil, c.syncOnce(ctx, userID)
	})
	if shared {
		c.log.Debug().Int64("user_id", userID).Msg("joined in-flight sync")
	}
	return err
}

func (c *Coordinator) syncOnce(ctx context.Context, userID int64) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.syncing.Store(true)
	defer c.syncing.Store(false)

	snap := c.ledger.Snapshot()
	if snap.Len() == 0 {
		c.log.Debug().Int64("user_id", userID).Msg("nothing to sync")
		return nil
	}

	session := newSyncSession(userID, snap)
	log := c.log.With().Str("session", session.id).Int64("user_id", userID).Logger()
	log.Debug().Int("changes", snap.Len()).Msg("pushing preferences")

	defer func() { c.finish(err) }()

	resp, err := c.gateway.SyncPreferences(ctx, &PreferenceSyncRequest{
		UserID:      userID,
		Preferences: snap.Values(),
	})
	if err != nil {
		log.Warn().Err(err).Int("pending", snap.Len()).Msg("preference sync failed")
		return fmt.Errorf("sync preferences: %w", err)
	}
	if !resp.Success {
		rejection := &BackendRejection{Operation: "sync_preferences", StatusCode: 200, Message: resp.Message}
		log.Warn().Err(rejection).Int("pending", snap.Len()).Msg("preference sync rejected")
		return fmt.Errorf("sync preferences: %w", rejection)
	}

	cleared, err := c.clear(session.snapshot)
	if err != nil {
		return fmt.Errorf("sync preferences: %w", err)
	}

	now := time.Now()
	if err := c.store.setMetadataTime(metaLastSync, now); err != nil {
		return fmt.Errorf("sync preferences: %w", err)
	}
	c.statusMu.Lock()
	c.lastSync = now
	c.statusMu.Unlock()

	log.Info().
		Int("pushed", snap.Len()).
		Int("cleared", len(cleared)).
		Dur("took", time.Since(session.startedAt)).
		Msg("preferences synced")
	return nil
}

// ForceSync replaces local preferences with the backend's copy for userID.
//
// The ledger is snapshotted first. Each recognized remote key is applied
// through the validated local-write path, except keys edited locally after
// the snapshot: those keep the local value and stay pending. The snapshot's
// revisions are then cleared, since the pull supersedes them.
func (c *Coordinator) ForceSync(ctx context.Context, userID int64) (err error) {
	if c.gateway == nil {
		return ErrOffline
	}
	if userID <= 0 {
		return ErrInvalidUserID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.syncing.Store(true)
	defer c.syncing.Store(false)
	defer func() { c.finish(err) }()

	session := newSyncSession(userID, c.ledger.Snapshot())
	log := c.log.With().Str("session", session.id).Int64("user_id", userID).Logger()

	remote, err := c.gateway.FetchPreferences(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("force sync fetch failed")
		return fmt.Errorf("force sync: %w", err)
	}

	values := make(Preferences, len(remote))
	for rawKey, raw := range remote {
		key, err := ParsePreferenceKey(rawKey)
		if err != nil {
			log.Warn().Str("key", rawKey).Msg("skipping unknown remote preference")
			continue
		}
		v, err := key.Normalize(raw)
		if err != nil {
			log.Warn().Err(err).Str("key", rawKey).Msg("skipping invalid remote preference")
			continue
		}
		values[key] = v
	}

	applied, kept, err := c.writer.applyPulled(session.snapshot, values)
	if err != nil {
		return fmt.Errorf("force sync: %w", err)
	}
	for _, k := range kept {
		log.Info().Str("key", string(k)).Msg("keeping local edit made during force sync")
	}

	if _, err := c.clear(session.snapshot); err != nil {
		return fmt.Errorf("force sync: %w", err)
	}

	now := time.Now()
	if err := c.store.setMetadataTime(metaLastSync, now); err != nil {
		return fmt.Errorf("force sync: %w", err)
	}
	c.statusMu.Lock()
	c.lastSync = now
	c.statusMu.Unlock()

	log.Info().Int("applied", len(applied)).Int("kept", len(kept)).Msg("force sync complete")
	return nil
}

// clear drops the snapshot's revisions from the persisted ledger and then
// from memory. Both deletes are conditional on the revision, so a write
// landing in between survives in both places.
func (c *Coordinator) clear(snap LedgerSnapshot) ([]PreferenceKey, error) {
	if _, err := c.store.DeletePendingChanges(snap.Entries()); err != nil {
		return nil, err
	}
	return c.ledger.Clear(snap), nil
}

func (c *Coordinator) finish(err error) {
	c.statusMu.Lock()
	c.lastErr = err
	c.statusMu.Unlock()
}

// IsSyncing reports whether a pass is in flight.
func (c *Coordinator) IsSyncing() bool {
	return c.syncing.Load()
}

// LastSyncAt returns when the last successful pass finished.
func (c *Coordinator) LastSyncAt() time.Time {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.lastSync
}

// LastError returns the error from the most recent pass that reached the
// backend, or nil if it succeeded.
func (c *Coordinator) LastError() error {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.lastErr
}

// Status summarizes sync state for display.
func (c *Coordinator) Status() SyncStatus {
	st := SyncStatus{
		Syncing:        c.IsSyncing(),
		PendingChanges: c.ledger.Count(),
		LastSync:       c.LastSyncAt(),
		Offline:        c.gateway == nil,
	}
	if err := c.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}
