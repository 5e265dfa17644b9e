package courier

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// AppendCall stores a new call log row, unsynced, and returns it with its
// generated ID. A zero OccurredAt is stamped with the current time.
// A canceled ctx aborts the insert.
func (s *Store) AppendCall(ctx context.Context, rec CallLog) (*CallLog, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("append_call"); err != nil {
		return nil, err
	}

	rec.ID = ulid.Make().String()
	rec.Synced = false
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	rec.OccurredAt = rec.OccurredAt.UTC().Truncate(time.Millisecond)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (id, phone_number, direction, duration_seconds, success, error_message, occurred_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`,
		rec.ID,
		rec.PhoneNumber,
		string(rec.Direction),
		rec.DurationSeconds,
		rec.Success,
		nullString(rec.ErrorMessage),
		toMillis(rec.OccurredAt),
	)
	if err != nil {
		return nil, &StorageError{Op: "append_call", Err: err}
	}
	return &rec, nil
}

// AppendSMS stores a new SMS log row, unsynced, and returns it with its
// generated ID.
func (s *Store) AppendSMS(ctx context.Context, rec SMSLog) (*SMSLog, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("append_sms"); err != nil {
		return nil, err
	}

	rec.ID = ulid.Make().String()
	rec.Synced = false
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	rec.OccurredAt = rec.OccurredAt.UTC().Truncate(time.Millisecond)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sms_logs (id, phone_number, incoming_text, decision, reply_text, occurred_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`,
		rec.ID,
		rec.PhoneNumber,
		rec.IncomingText,
		string(rec.Decision),
		nullString(rec.ReplyText),
		toMillis(rec.OccurredAt),
	)
	if err != nil {
		return nil, &StorageError{Op: "append_sms", Err: err}
	}
	return &rec, nil
}

// ListUnsynced returns the unsynced rows of one log table, newest first.
// Rows with equal timestamps are ordered by ID, also descending.
func (s *Store) ListUnsynced(kind LogKind) ([]LogRecord, error) {
	switch kind {
	case LogKindCall:
		calls, err := s.ListUnsyncedCalls()
		if err != nil {
			return nil, err
		}
		out := make([]LogRecord, len(calls))
		for i := range calls {
			out[i] = calls[i]
		}
		return out, nil
	case LogKindSMS:
		msgs, err := s.ListUnsyncedSMS()
		if err != nil {
			return nil, err
		}
		out := make([]LogRecord, len(msgs))
		for i := range msgs {
			out[i] = msgs[i]
		}
		return out, nil
	default:
		return nil, ErrInvalidLogKind
	}
}

// ListUnsyncedCalls returns unsynced call logs, newest first.
func (s *Store) ListUnsyncedCalls() ([]CallLog, error) {
	return s.queryCalls("list_unsynced", `WHERE synced = 0 ORDER BY occurred_at DESC, id DESC`)
}

// RecentCalls returns the newest call logs regardless of sync state.
func (s *Store) RecentCalls(limit int) ([]CallLog, error) {
	return s.queryCalls("recent_calls", `ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)
}

// ListUnsyncedSMS returns unsynced SMS logs, newest first.
func (s *Store) ListUnsyncedSMS() ([]SMSLog, error) {
	return s.querySMS("list_unsynced", `WHERE synced = 0 ORDER BY occurred_at DESC, id DESC`)
}

// RecentSMS returns the newest SMS logs regardless of sync state.
func (s *Store) RecentSMS(limit int) ([]SMSLog, error) {
	return s.querySMS("recent_sms", `ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) queryCalls(op, clause string, args ...any) ([]CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(op); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, phone_number, direction, duration_seconds, success, error_message, occurred_at, synced
		FROM call_logs `+clause, args...)
	if err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var results []CallLog
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, &StorageError{Op: op, Err: err}
		}
		results = append(results, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	return results, nil
}

func (s *Store) querySMS(op, clause string, args ...any) ([]SMSLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(op); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, phone_number, incoming_text, decision, reply_text, occurred_at, synced
		FROM sms_logs `+clause, args...)
	if err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var results []SMSLog
	for rows.Next() {
		rec, err := scanSMS(rows)
		if err != nil {
			return nil, &StorageError{Op: op, Err: err}
		}
		results = append(results, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	return results, nil
}

// GetCall returns a single call log by ID.
func (s *Store) GetCall(id string) (*CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get_call"); err != nil {
		return nil, err
	}

	rec, err := scanCall(s.db.QueryRow(`
		SELECT id, phone_number, direction, duration_seconds, success, error_message, occurred_at, synced
		FROM call_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get_call", Err: err}
	}
	return rec, nil
}

// GetSMS returns a single SMS log by ID.
func (s *Store) GetSMS(id string) (*SMSLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("get_sms"); err != nil {
		return nil, err
	}

	rec, err := scanSMS(s.db.QueryRow(`
		SELECT id, phone_number, incoming_text, decision, reply_text, occurred_at, synced
		FROM sms_logs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get_sms", Err: err}
	}
	return rec, nil
}

// MarkSynced flags one log row as acknowledged by the backend.
// Marking an already-synced row is a no-op, and so is an unknown ID.
func (s *Store) MarkSynced(kind LogKind, id string) error {
	table, err := logTable(kind)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("mark_synced"); err != nil {
		return err
	}

	_, err = s.db.Exec(`UPDATE `+table+` SET synced = 1, synced_at = ? WHERE id = ? AND synced = 0`,
		toMillis(time.Now()), id)
	if err != nil {
		return &StorageError{Op: "mark_synced", Err: err}
	}
	return nil
}

// PurgeSyncedBefore deletes synced rows of one log table that occurred
// before cutoff. Unsynced rows are never purged.
func (s *Store) PurgeSyncedBefore(kind LogKind, cutoff time.Time) (int64, error) {
	table, err := logTable(kind)
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen("purge"); err != nil {
		return 0, err
	}

	res, err := s.db.Exec(`DELETE FROM `+table+` WHERE synced = 1 AND occurred_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, &StorageError{Op: "purge", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func logTable(kind LogKind) (string, error) {
	switch kind {
	case LogKindCall:
		return "call_logs", nil
	case LogKindSMS:
		return "sms_logs", nil
	default:
		return "", ErrInvalidLogKind
	}
}

func scanCall(sc scanner) (*CallLog, error) {
	var (
		rec        CallLog
		direction  string
		errMsg     sql.NullString
		occurredMs int64
	)
	if err := sc.Scan(&rec.ID, &rec.PhoneNumber, &direction, &rec.DurationSeconds,
		&rec.Success, &errMsg, &occurredMs, &rec.Synced); err != nil {
		return nil, err
	}
	rec.Direction = CallDirection(direction)
	rec.ErrorMessage = errMsg.String
	rec.OccurredAt = fromMillis(occurredMs)
	return &rec, nil
}

func scanSMS(sc scanner) (*SMSLog, error) {
	var (
		rec        SMSLog
		decision   string
		reply      sql.NullString
		occurredMs int64
	)
	if err := sc.Scan(&rec.ID, &rec.PhoneNumber, &rec.IncomingText, &decision,
		&reply, &occurredMs, &rec.Synced); err != nil {
		return nil, err
	}
	rec.Decision = SMSDecision(decision)
	rec.ReplyText = reply.String
	rec.OccurredAt = fromMillis(occurredMs)
	return &rec, nil
}
