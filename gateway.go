package courier

import (
	"context"
	"time"
)

// Gateway abstracts the REST backend. Implementations must be safe for
// concurrent use and must report failures as *TransportError (backend
// unreachable) or *BackendRejection (backend answered with a non-2xx).
//
// The HTTP implementation lives in internal/gateway.
type Gateway interface {
	// SyncPreferences pushes a batch of preference changes for one user.
	// A response with Success=false is not an error at this layer.
	SyncPreferences(ctx context.Context, req *PreferenceSyncRequest) (*PreferenceSyncResponse, error)

	// FetchPreferences returns the backend's full preference map for a user.
	// Keys are returned as sent by the backend and may include unknown ones.
	FetchPreferences(ctx context.Context, userID int64) (map[string]Value, error)

	// PushHistory uploads a single call or SMS record.
	PushHistory(ctx context.Context, rec *HistoryRecord) (*HistoryResponse, error)

	// HealthCheck validates connectivity.
	HealthCheck(ctx context.Context) (*BackendHealth, error)
}

// PreferenceSyncRequest is the body of POST /preferences/sync.
type PreferenceSyncRequest struct {
	UserID      int64       `json:"userId"`
	Preferences Preferences `json:"preferences"`
}

// PreferenceSyncResponse is the backend's answer to a preference push.
type PreferenceSyncResponse struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message,omitempty"`
	Preferences map[string]Value `json:"preferences,omitempty"`
}

// HistoryRecord is the body of POST /history: one call or one SMS.
type HistoryRecord struct {
	UserID      int64     `json:"userId"`
	Kind        LogKind   `json:"kind"`
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	OccurredAt  time.Time `json:"occurredAt"`

	Direction       CallDirection `json:"direction,omitempty"`
	DurationSeconds *float64      `json:"callDurationSeconds,omitempty"`
	Success         *bool         `json:"success,omitempty"`
	ErrorMessage    string        `json:"errorMessage,omitempty"`

	IncomingText string      `json:"incomingText,omitempty"`
	Decision     SMSDecision `json:"decision,omitempty"`
	ReplyText    string      `json:"replyText,omitempty"`
}

// HistoryResponse is the backend's answer to a history upload.
type HistoryResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BackendHealth is the body of GET /health.
type BackendHealth struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHistoryRecord converts a log row into its wire form.
func NewHistoryRecord(userID int64, rec LogRecord) *HistoryRecord {
	h := &HistoryRecord{
		UserID:     userID,
		Kind:       rec.LogKind(),
		ID:         rec.LogID(),
		OccurredAt: rec.Timestamp().UTC(),
	}
	switch r := rec.(type) {
	case CallLog:
		duration, success := r.DurationSeconds, r.Success
		h.PhoneNumber = r.PhoneNumber
		h.Direction = r.Direction
		h.DurationSeconds = &duration
		h.Success = &success
		h.ErrorMessage = r.ErrorMessage
	case SMSLog:
		h.PhoneNumber = r.PhoneNumber
		h.IncomingText = r.IncomingText
		h.Decision = r.Decision
		h.ReplyText = r.ReplyText
	}
	return h
}
