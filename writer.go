package courier

import (
	"sort"
	"sync"
	"time"
)

// preferenceWriter is the single local-write path for preferences. It
// serializes (stamp revision, persist, install in ledger) so the persisted
// pending_changes table and the in-memory ledger agree on every revision.
// The lock is never held across a network call.
type preferenceWriter struct {
	mu     sync.Mutex
	store  *Store
	ledger *Ledger
	notify func()
}

// record writes user edits and queues them for sync. Values must be
// normalized by the caller.
func (w *preferenceWriter) record(values Preferences) ([]LedgerEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := make([]LedgerEntry, 0, len(values))
	for _, k := range sortedKeys(values) {
		entries = append(entries, LedgerEntry{Key: k, Value: values[k], Rev: w.ledger.nextRev()})
	}

	if err := w.store.writePreferences(entries, true, time.Now()); err != nil {
		return nil, err
	}
	w.ledger.put(entries...)
	w.changed()
	return entries, nil
}

// applyPulled writes values fetched from the backend without queueing them.
// A key edited locally after snap was taken keeps its local value. It
// returns the keys applied and the keys skipped for that reason.
func (w *preferenceWriter) applyPulled(snap LedgerSnapshot, values Preferences) (applied, kept []PreferenceKey, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries := make([]LedgerEntry, 0, len(values))
	for _, k := range sortedKeys(values) {
		if w.ledger.ChangedSince(k, snap) {
			kept = append(kept, k)
			continue
		}
		entries = append(entries, LedgerEntry{Key: k, Value: values[k]})
		applied = append(applied, k)
	}

	if len(entries) > 0 {
		if err := w.store.writePreferences(entries, false, time.Now()); err != nil {
			return nil, nil, err
		}
		w.changed()
	}
	return applied, kept, nil
}

func (w *preferenceWriter) changed() {
	if w.notify != nil {
		w.notify()
	}
}

func sortedKeys(p Preferences) []PreferenceKey {
	keys := make([]PreferenceKey, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
