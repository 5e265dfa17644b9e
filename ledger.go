package courier

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// LedgerEntry is one unacknowledged preference write. Rev is stamped from
// the ledger's monotonic clock; a later write to the same key always carries
// a larger Rev.
type LedgerEntry struct {
	Key   PreferenceKey `json:"key"`
	Value Value         `json:"value"`
	Rev   uint64        `json:"rev"`
}

// LedgerSnapshot is an immutable copy of the ledger taken at the start of a
// sync pass. The pass clears against the snapshot, never the live ledger.
type LedgerSnapshot struct {
	entries map[PreferenceKey]LedgerEntry
	takenAt time.Time
}

// Len returns the number of keys captured.
func (s LedgerSnapshot) Len() int { return len(s.entries) }

// TakenAt returns when the snapshot was captured.
func (s LedgerSnapshot) TakenAt() time.Time { return s.takenAt }

// Rev returns the captured revision for key.
func (s LedgerSnapshot) Rev(key PreferenceKey) (uint64, bool) {
	e, ok := s.entries[key]
	return e.Rev, ok
}

// Entries returns the captured entries ordered by key.
func (s LedgerSnapshot) Entries() []LedgerEntry {
	out := make([]LedgerEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Values returns the captured key/value pairs as a preference map.
func (s LedgerSnapshot) Values() Preferences {
	out := make(Preferences, len(s.entries))
	for k, e := range s.entries {
		out[k] = e.Value
	}
	return out
}

// Ledger tracks preference keys whose latest local write has not been
// acknowledged by the backend. Every method is atomic on its own and none
// blocks on I/O.
type Ledger struct {
	mu      sync.Mutex
	entries map[PreferenceKey]LedgerEntry
	clock   atomic.Uint64
}

// NewLedger creates an empty ledger with its clock at zero.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[PreferenceKey]LedgerEntry)}
}

// nextRev returns the next revision. Calls are linearizable.
func (l *Ledger) nextRev() uint64 {
	return l.clock.Add(1)
}

// Record stamps a new revision for key and stores the write, replacing any
// earlier pending value for the same key.
func (l *Ledger) Record(key PreferenceKey, v Value) LedgerEntry {
	e := LedgerEntry{Key: key, Value: v, Rev: l.nextRev()}
	l.put(e)
	return e
}

// put installs pre-stamped entries. An entry never replaces one with a
// newer revision.
func (l *Ledger) put(entries ...LedgerEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		if cur, ok := l.entries[e.Key]; ok && cur.Rev > e.Rev {
			continue
		}
		l.entries[e.Key] = e
	}
}

// Restore loads persisted entries and advances the clock past the highest
// restored revision.
func (l *Ledger) Restore(entries []LedgerEntry) {
	var maxRev uint64
	for _, e := range entries {
		if e.Rev > maxRev {
			maxRev = e.Rev
		}
	}
	for {
		cur := l.clock.Load()
		if cur >= maxRev || l.clock.CompareAndSwap(cur, maxRev) {
			break
		}
	}
	l.put(entries...)
}

// Snapshot copies the current ledger. It does not clear anything.
func (l *Ledger) Snapshot() LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make(map[PreferenceKey]LedgerEntry, len(l.entries))
	for k, e := range l.entries {
		entries[k] = e
	}
	return LedgerSnapshot{entries: entries, takenAt: time.Now()}
}

// Clear removes the snapshot's keys whose live revision still equals the
// captured one. Keys written again after the snapshot are kept. It returns
// the keys actually removed.
func (l *Ledger) Clear(snap LedgerSnapshot) []PreferenceKey {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cleared []PreferenceKey
	for k, captured := range snap.entries {
		if cur, ok := l.entries[k]; ok && cur.Rev == captured.Rev {
			delete(l.entries, k)
			cleared = append(cleared, k)
		}
	}
	sort.Slice(cleared, func(i, j int) bool { return cleared[i] < cleared[j] })
	return cleared
}

// ChangedSince reports whether key has a pending write that the snapshot
// did not capture, either a new key or a newer revision.
func (l *Ledger) ChangedSince(key PreferenceKey, snap LedgerSnapshot) bool {
	l.mu.Lock()
	cur, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return false
	}
	rev, captured := snap.Rev(key)
	return !captured || cur.Rev != rev
}

// Get returns the pending entry for key, if any.
func (l *Ledger) Get(key PreferenceKey) (LedgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return e, ok
}

// HasPending reports whether any write awaits acknowledgement.
func (l *Ledger) HasPending() bool {
	return l.Count() > 0
}

// Count returns the number of pending keys.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
