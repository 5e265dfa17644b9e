package courier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PreferencesRepository is the application-facing preference API. Writes
// land in the local store and the pending-change ledger; syncing to the
// backend happens through the coordinator.
type PreferencesRepository struct {
	store  *Store
	ledger *Ledger
	writer *preferenceWriter
	coord  *Coordinator
	log    zerolog.Logger

	syncOnWrite bool
	userID      int64
	syncTimeout time.Duration
	bg          sync.WaitGroup

	subMu   sync.Mutex
	subs    map[int]chan Preferences
	nextSub int
}

func newPreferencesRepository(store *Store, ledger *Ledger, log zerolog.Logger) *PreferencesRepository {
	r := &PreferencesRepository{
		store:  store,
		ledger: ledger,
		log:    log.With().Str("component", "preferences").Logger(),
		subs:   make(map[int]chan Preferences),
	}
	r.writer = &preferenceWriter{store: store, ledger: ledger, notify: r.broadcast}
	return r
}

// Subscribe returns a channel that receives the current preferences, then
// the full map again after every local or pulled change. Only the latest
// map is buffered; a slow reader skips intermediate states. The channel is
// closed when ctx is done.
func (r *PreferencesRepository) Subscribe(ctx context.Context) <-chan Preferences {
	ch := make(chan Preferences, 1)

	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	if prefs, err := r.store.GetAllPreferences(); err == nil {
		ch <- prefs
	}
	r.subMu.Unlock()

	go func() {
		<-ctx.Done()
		r.subMu.Lock()
		delete(r.subs, id)
		close(ch)
		r.subMu.Unlock()
	}()
	return ch
}

func (r *PreferencesRepository) broadcast() {
	prefs, err := r.store.GetAllPreferences()
	if err != nil {
		r.log.Warn().Err(err).Msg("read preferences for subscribers")
		return
	}

	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		ch <- prefs.Clone()
	}
}

// GetAllPreferences returns every key with defaults for unwritten ones.
func (r *PreferencesRepository) GetAllPreferences() (Preferences, error) {
	return r.store.GetAllPreferences()
}

// Get returns one preference, or its default.
func (r *PreferencesRepository) Get(key PreferenceKey) (Value, error) {
	return r.store.GetPreference(key)
}

// UpdatePreference validates and writes one value, queueing it for sync.
// An unknown key or invalid value is rejected before anything is stored.
func (r *PreferencesRepository) UpdatePreference(key PreferenceKey, v Value) error {
	return r.UpdatePreferences(Preferences{key: v})
}

// UpdatePreferences validates every value first, then writes them all in a
// single transaction. Either every key is written and queued or none is.
func (r *PreferencesRepository) UpdatePreferences(values Preferences) error {
	if len(values) == 0 {
		return nil
	}

	normalized := make(Preferences, len(values))
	for k, v := range values {
		n, err := k.Normalize(v)
		if err != nil {
			return err
		}
		normalized[k] = n
	}

	entries, err := r.writer.record(normalized)
	if err != nil {
		return err
	}
	for _, e := range entries {
		r.log.Debug().Str("key", string(e.Key)).Uint64("rev", e.Rev).Msg("preference updated")
	}

	r.syncAfterWrite()
	return nil
}

// syncAfterWrite starts an opportunistic background sync. Its failure is
// logged only; the change stays pending for the scheduler.
func (r *PreferencesRepository) syncAfterWrite() {
	if !r.syncOnWrite || r.coord == nil || r.coord.gateway == nil || r.userID <= 0 {
		return
	}

	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.syncTimeout)
		defer cancel()
		if err := r.coord.Sync(ctx, r.userID); err != nil {
			r.log.Debug().Err(err).Msg("sync after write failed; change stays pending")
		}
	}()
}

// SyncWithBackend pushes pending changes for userID and reports whether the
// pass succeeded. Failures are logged and visible through Status.
func (r *PreferencesRepository) SyncWithBackend(ctx context.Context, userID int64) bool {
	if r.coord == nil {
		return false
	}
	if err := r.coord.Sync(ctx, userID); err != nil {
		if !errors.Is(err, ErrOffline) {
			r.log.Warn().Err(err).Int("pending", r.ledger.Count()).Msg("Sync failed, will retry automatically")
		}
		return false
	}
	return true
}

// ForceSync replaces local preferences with the backend's copy and reports
// whether it succeeded.
func (r *PreferencesRepository) ForceSync(ctx context.Context, userID int64) bool {
	if r.coord == nil {
		return false
	}
	if err := r.coord.ForceSync(ctx, userID); err != nil {
		r.log.Warn().Err(err).Msg("force sync failed")
		return false
	}
	return true
}

// HasPendingChanges reports whether any write awaits acknowledgement.
func (r *PreferencesRepository) HasPendingChanges() bool {
	return r.ledger.HasPending()
}

// GetPendingChangesCount returns the number of keys awaiting acknowledgement.
func (r *PreferencesRepository) GetPendingChangesCount() int {
	return r.ledger.Count()
}

// PendingChanges returns the pending writes ordered by key.
func (r *PreferencesRepository) PendingChanges() []LedgerEntry {
	return r.ledger.Snapshot().Entries()
}

// Status summarizes sync state.
func (r *PreferencesRepository) Status() SyncStatus {
	if r.coord == nil {
		return SyncStatus{PendingChanges: r.ledger.Count(), Offline: true}
	}
	return r.coord.Status()
}

// wait blocks until background syncs started by writes have returned.
func (r *PreferencesRepository) wait() {
	r.bg.Wait()
}
