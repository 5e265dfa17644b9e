package courier

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperengineering/courier/internal/store/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "2"

// Metadata keys.
const (
	metaSchemaVersion = "schema_version"
	metaLastSync      = "last_sync"
	metaLastLogSync   = "last_log_sync"
)

// Store manages the local SQLite database holding preferences, the
// persisted pending-change ledger and the call/SMS logs.
//
// Writes rely on SQLite's own locking (WAL plus busy_timeout); the mutex
// only guards the closed flag.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewStore opens or creates a local store.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaSchemaVersion, schemaVersion)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// checkOpen returns a StorageError wrapping ErrStoreClosed once Close has run.
// Callers hold s.mu for reading.
func (s *Store) checkOpen(op string) error {
	if s.closed {
		return &StorageError{Op: op, Err: ErrStoreClosed}
	}
	return nil
}

// GetMetadata returns the value stored under key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get_metadata"); err != nil {
		return "", err
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "get_metadata", Err: err}
	}
	return value, nil
}

// SetMetadata upserts a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("set_metadata"); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return &StorageError{Op: "set_metadata", Err: err}
	}
	return nil
}

// metadataTime reads a timestamp written by setMetadataTime.
// A missing or malformed value reads as the zero time.
func (s *Store) metadataTime(key string) (time.Time, error) {
	raw, err := s.GetMetadata(key)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (s *Store) setMetadataTime(key string, t time.Time) error {
	return s.SetMetadata(key, t.UTC().Format(time.RFC3339Nano))
}

// Stats returns store statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	if err := s.checkOpen("stats"); err != nil {
		s.mu.RUnlock()
		return nil, err
	}

	stats := &StoreStats{SchemaVersion: schemaVersion}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM preferences`, &stats.PreferenceCount},
		{`SELECT COUNT(*) FROM pending_changes`, &stats.PendingChanges},
		{`SELECT COUNT(*) FROM call_logs`, &stats.CallLogs},
		{`SELECT COUNT(*) FROM call_logs WHERE synced = 0`, &stats.UnsyncedCalls},
		{`SELECT COUNT(*) FROM sms_logs`, &stats.SMSLogs},
		{`SELECT COUNT(*) FROM sms_logs WHERE synced = 0`, &stats.UnsyncedSMS},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			s.mu.RUnlock()
			return nil, &StorageError{Op: "stats", Err: err}
		}
	}
	s.mu.RUnlock()

	var err error
	if stats.LastSync, err = s.metadataTime(metaLastSync); err != nil {
		return nil, err
	}
	if stats.LastLogSync, err = s.metadataTime(metaLastLogSync); err != nil {
		return nil, err
	}
	return stats, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
