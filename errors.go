package courier

import (
	"errors"
	"fmt"
)

// Common errors returned by the Courier client.
var (
	// ErrNotFound is returned when a log record is not found.
	ErrNotFound = errors.New("log record not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrOffline is returned when a network operation is attempted without a backend.
	ErrOffline = errors.New("operation unavailable in offline mode")

	// ErrInvalidUserID is returned when a sync is requested for a non-positive user ID.
	ErrInvalidUserID = errors.New("user id must be positive")

	// ErrSchedulerRunning is returned when starting a scheduler that is already running.
	ErrSchedulerRunning = errors.New("scheduler already running")

	// ErrInvalidLogKind is returned for a log kind other than call or sms.
	ErrInvalidLogKind = errors.New("invalid log kind")
)

// ValidationError is returned when configuration or record validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// StorageError wraps a failure of the local SQLite store.
// It is the only error class surfaced to callers as a hard failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TransportError is returned when the backend could not be reached:
// DNS failure, refused connection, timeout or a cancelled context.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendRejection is returned when the backend answered but did not apply
// the request, either with a non-2xx status or an explicit success=false.
type BackendRejection struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *BackendRejection) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %s rejected (status %d)", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("backend: %s rejected (status %d): %s", e.Operation, e.StatusCode, e.Message)
}

// UnknownPreferenceKeyError is returned when a preference key is not part of
// the recognized key set. Nothing is written and nothing is queued for sync.
type UnknownPreferenceKeyError struct {
	Key string
}

func (e *UnknownPreferenceKeyError) Error() string {
	return fmt.Sprintf("unknown preference key %q", e.Key)
}

// InvalidValueError is returned when a preference value has the wrong kind
// or falls outside the key's accepted range.
type InvalidValueError struct {
	Key    PreferenceKey
	Value  Value
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %s for %s: %s", e.Value, e.Key, e.Reason)
}

// IsRetryable reports whether a failed sync may succeed on a later attempt
// without any change to local state.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var br *BackendRejection
	if errors.As(err, &br) {
		return br.StatusCode >= 500 || br.StatusCode == 429 || br.StatusCode == 200
	}
	return false
}
