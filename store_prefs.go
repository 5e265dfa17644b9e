package courier

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetPreference returns the stored value for key, or the key's default when
// nothing has been written yet. Absence is never an error.
func (s *Store) GetPreference(key PreferenceKey) (Value, error) {
	if !key.IsValid() {
		return Value{}, &UnknownPreferenceKeyError{Key: string(key)}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get_preference"); err != nil {
		return Value{}, err
	}

	v, err := s.scanPreference(s.db.QueryRow(`SELECT kind, value FROM preferences WHERE key = ?`, string(key)), key)
	if errors.Is(err, sql.ErrNoRows) {
		return key.Default(), nil
	}
	if err != nil {
		return Value{}, &StorageError{Op: "get_preference", Err: err}
	}
	return v, nil
}

// GetAllPreferences returns every recognized key, with defaults filled in
// for keys that were never written.
func (s *Store) GetAllPreferences() (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get_preferences"); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT key, kind, value FROM preferences`)
	if err != nil {
		return nil, &StorageError{Op: "get_preferences", Err: err}
	}
	defer rows.Close()

	prefs := DefaultPreferences()
	for rows.Next() {
		var rawKey, kindName, text string
		if err := rows.Scan(&rawKey, &kindName, &text); err != nil {
			return nil, &StorageError{Op: "get_preferences", Err: err}
		}
		key := PreferenceKey(rawKey)
		if !key.IsValid() {
			continue
		}
		v, err := decodeStoredValue(key, kindName, text)
		if err != nil {
			return nil, &StorageError{Op: "get_preferences", Err: err}
		}
		prefs[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "get_preferences", Err: err}
	}
	return prefs, nil
}

// PutPreference validates and durably writes a single value. It does not
// queue the change for sync; application writes go through the
// PreferencesRepository instead.
func (s *Store) PutPreference(key PreferenceKey, v Value) error {
	normalized, err := key.Normalize(v)
	if err != nil {
		return err
	}
	return s.writePreferences([]LedgerEntry{{Key: key, Value: normalized}}, false, time.Now())
}

// writePreferences upserts entries into the preferences table and, when
// pending is set, records each (key, value, rev) in pending_changes within
// the same transaction. Values must already be normalized.
func (s *Store) writePreferences(entries []LedgerEntry, pending bool, now time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("put_preferences"); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Op: "put_preferences", Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer tx.Rollback() // no-op if committed

	modified := toMillis(now)
	for _, e := range entries {
		kind, text := e.Value.Kind().String(), e.Value.text()
		if _, err := tx.Exec(`
			INSERT INTO preferences (key, kind, value, modified_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, value = excluded.value, modified_at = excluded.modified_at
		`, string(e.Key), kind, text, modified); err != nil {
			return &StorageError{Op: "put_preferences", Err: err}
		}

		if !pending {
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO pending_changes (key, kind, value, rev) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, value = excluded.value, rev = excluded.rev
		`, string(e.Key), kind, text, int64(e.Rev)); err != nil {
			return &StorageError{Op: "put_preferences", Err: fmt.Errorf("record pending change: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "put_preferences", Err: err}
	}
	return nil
}

// LoadPendingChanges returns the persisted ledger, used to restore it on start.
func (s *Store) LoadPendingChanges() ([]LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("load_pending"); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT key, kind, value, rev FROM pending_changes ORDER BY rev`)
	if err != nil {
		return nil, &StorageError{Op: "load_pending", Err: err}
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var rawKey, kindName, text string
		var rev int64
		if err := rows.Scan(&rawKey, &kindName, &text, &rev); err != nil {
			return nil, &StorageError{Op: "load_pending", Err: err}
		}
		key := PreferenceKey(rawKey)
		if !key.IsValid() {
			continue
		}
		v, err := decodeStoredValue(key, kindName, text)
		if err != nil {
			return nil, &StorageError{Op: "load_pending", Err: err}
		}
		entries = append(entries, LedgerEntry{Key: key, Value: v, Rev: uint64(rev)})
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "load_pending", Err: err}
	}
	return entries, nil
}

// DeletePendingChanges removes persisted ledger rows whose revision still
// matches the given entries. Rows rewritten since carry a newer revision
// and are left in place.
func (s *Store) DeletePendingChanges(entries []LedgerEntry) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("delete_pending"); err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, &StorageError{Op: "delete_pending", Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer tx.Rollback()

	var deleted int64
	for _, e := range entries {
		res, err := tx.Exec(`DELETE FROM pending_changes WHERE key = ? AND rev = ?`, string(e.Key), int64(e.Rev))
		if err != nil {
			return 0, &StorageError{Op: "delete_pending", Err: err}
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "delete_pending", Err: err}
	}
	return deleted, nil
}

func (s *Store) scanPreference(sc scanner, key PreferenceKey) (Value, error) {
	var kindName, text string
	if err := sc.Scan(&kindName, &text); err != nil {
		return Value{}, err
	}
	return decodeStoredValue(key, kindName, text)
}

func decodeStoredValue(key PreferenceKey, kindName, text string) (Value, error) {
	kind, err := parseKind(kindName)
	if err != nil {
		return Value{}, fmt.Errorf("decode %s: %w", key, err)
	}
	v, err := ParseValue(kind, text)
	if err != nil {
		return Value{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}
