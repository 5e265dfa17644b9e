package courier

import "time"

// LogKind selects one of the two append-only log tables.
type LogKind string

const (
	LogKindCall LogKind = "call"
	LogKindSMS  LogKind = "sms"
)

// LogKinds returns every log kind in sync order.
func LogKinds() []LogKind {
	return []LogKind{LogKindCall, LogKindSMS}
}

// IsValid checks if the kind names a log table.
func (k LogKind) IsValid() bool {
	return k == LogKindCall || k == LogKindSMS
}

// CallDirection classifies a call.
type CallDirection string

const (
	CallIncoming CallDirection = "incoming"
	CallOutgoing CallDirection = "outgoing"
	CallMissed   CallDirection = "missed"
)

// IsValid checks if the direction is recognized.
func (d CallDirection) IsValid() bool {
	return d == CallIncoming || d == CallOutgoing || d == CallMissed
}

// SMSDecision is the user's answer to an auto-reply prompt.
type SMSDecision string

const (
	SMSDecisionYes SMSDecision = "yes"
	SMSDecisionNo  SMSDecision = "no"
)

// IsValid checks if the decision is yes or no.
func (d SMSDecision) IsValid() bool {
	return d == SMSDecisionYes || d == SMSDecisionNo
}

// LogRecord is a row from either log table.
type LogRecord interface {
	LogID() string
	LogKind() LogKind
	Timestamp() time.Time
	IsSynced() bool
}

// CallLog records one handled call.
type CallLog struct {
	ID              string        `json:"id"`
	PhoneNumber     string        `json:"phone_number"`
	Direction       CallDirection `json:"direction"`
	DurationSeconds float64       `json:"duration_seconds"`
	Success         bool          `json:"success"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	OccurredAt      time.Time     `json:"occurred_at"`
	Synced          bool          `json:"synced"`
}

func (c CallLog) LogID() string        { return c.ID }
func (c CallLog) LogKind() LogKind     { return LogKindCall }
func (c CallLog) Timestamp() time.Time { return c.OccurredAt }
func (c CallLog) IsSynced() bool       { return c.Synced }

// Validate checks required call fields.
func (c CallLog) Validate() error {
	if c.PhoneNumber == "" {
		return &ValidationError{Field: "PhoneNumber", Message: "required"}
	}
	if c.Direction != "" && !c.Direction.IsValid() {
		return &ValidationError{Field: "Direction", Message: "must be incoming, outgoing or missed"}
	}
	if c.DurationSeconds < 0 {
		return &ValidationError{Field: "DurationSeconds", Message: "must be non-negative"}
	}
	return nil
}

// SMSLog records one incoming message and the decision taken on it.
type SMSLog struct {
	ID           string      `json:"id"`
	PhoneNumber  string      `json:"phone_number"`
	IncomingText string      `json:"incoming_text"`
	Decision     SMSDecision `json:"decision"`
	ReplyText    string      `json:"reply_text,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
	Synced       bool        `json:"synced"`
}

func (s SMSLog) LogID() string        { return s.ID }
func (s SMSLog) LogKind() LogKind     { return LogKindSMS }
func (s SMSLog) Timestamp() time.Time { return s.OccurredAt }
func (s SMSLog) IsSynced() bool       { return s.Synced }

// Validate checks required SMS fields.
func (s SMSLog) Validate() error {
	if s.PhoneNumber == "" {
		return &ValidationError{Field: "PhoneNumber", Message: "required"}
	}
	if !s.Decision.IsValid() {
		return &ValidationError{Field: "Decision", Message: "must be yes or no"}
	}
	return nil
}

// LogSyncResult summarizes one log-sync pass.
type LogSyncResult struct {
	Calls    KindSyncResult `json:"calls"`
	SMS      KindSyncResult `json:"sms"`
	Duration time.Duration  `json:"duration"`
}

// KindSyncResult counts per-record outcomes for one log kind.
type KindSyncResult struct {
	Pushed int   `json:"pushed"`
	Failed int   `json:"failed"`
	Purged int64 `json:"purged"`
}

// Failed reports the total number of records left unsynced.
func (r *LogSyncResult) Failed() int {
	return r.Calls.Failed + r.SMS.Failed
}

// SyncStatus describes the preference sync state shown to the user.
type SyncStatus struct {
	Syncing        bool      `json:"syncing"`
	PendingChanges int       `json:"pending_changes"`
	LastSync       time.Time `json:"last_sync"`
	LastError      string    `json:"last_error,omitempty"`
	Offline        bool      `json:"offline"`
}

// Message renders the status line shown after a sync attempt.
func (s SyncStatus) Message() string {
	switch {
	case s.Syncing:
		return "Syncing..."
	case s.LastError != "" && s.PendingChanges > 0:
		return "Sync failed, will retry automatically"
	case s.PendingChanges > 0:
		return "Changes pending sync"
	default:
		return "All changes synced"
	}
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	PreferenceCount int       `json:"preference_count"`
	PendingChanges  int       `json:"pending_changes"`
	CallLogs        int       `json:"call_logs"`
	UnsyncedCalls   int       `json:"unsynced_calls"`
	SMSLogs         int       `json:"sms_logs"`
	UnsyncedSMS     int       `json:"unsynced_sms"`
	LastSync        time.Time `json:"last_sync"`
	LastLogSync     time.Time `json:"last_log_sync"`
	SchemaVersion   string    `json:"schema_version"`
}

// HealthStatus represents the health of the client.
type HealthStatus struct {
	Healthy          bool   `json:"healthy"`
	StoreOK          bool   `json:"store_ok"`
	BackendReachable bool   `json:"backend_reachable"`
	Error            string `json:"error,omitempty"`
}
