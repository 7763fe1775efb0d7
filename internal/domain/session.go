package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EndReason explains why a DM session was closed.
type EndReason string

const (
	EndReasonTimeout    EndReason = "timeout"
	EndReasonUserLeft   EndReason = "user_left"
	EndReasonBotRestart EndReason = "bot_restart"
)

// DMSession represents one bounded window of conversation between a user
// and a conversation context, scoped to a tenant.
type DMSession struct {
	ID                uuid.UUID  `json:"id"`
	TenantID          string     `json:"tenant_id"`
	UserID            string     `json:"user_id"`
	ConversationID    string     `json:"conversation_id"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	EndReason         *EndReason `json:"end_reason,omitempty"`
	MessageCount      int        `json:"message_count"`
	TotalUserChars    int        `json:"total_user_chars"`
	TotalBotChars     int        `json:"total_bot_chars"`
	AvgResponseTimeMs int        `json:"avg_response_time_ms"`
}

// TrackingStore is the persistence sink consumed by the event processor.
// Every operation is keyed by tenant ID; implementations must never let a
// query scoped to one tenant touch another tenant's rows.
type TrackingStore interface {
	// CreateSession inserts the session row with its counter columns at
	// zero. Per-metric rows are keyed by metric name and are created by the
	// first UpsertMetric for that name. Idempotent on session ID: a
	// duplicate insert is a no-op.
	CreateSession(ctx context.Context, session *DMSession) error

	// EndSession marks the session row ended with the given reason.
	EndSession(ctx context.Context, tenantID string, sessionID uuid.UUID, reason EndReason) error

	// UpdateSessionCounters writes the session's final aggregate counters.
	UpdateSessionCounters(ctx context.Context, tenantID string, sessionID uuid.UUID, messageCount, userChars, botChars, avgResponseTimeMs int) error

	// AppendEvent appends a raw event record to the audit log.
	AppendEvent(ctx context.Context, record *EventRecord) error

	// UpsertMetric applies count/value deltas to a named per-session metric
	// in a single atomic add-on-conflict statement.
	UpsertMetric(ctx context.Context, tenantID string, sessionID uuid.UUID, name string, deltaCount int64, deltaValue float64) error
}

// SessionRepository is the read side over persisted sessions, used by the
// analytics API.
type SessionRepository interface {
	Get(ctx context.Context, tenantID string, sessionID uuid.UUID) (*DMSession, error)
	ListRecent(ctx context.Context, tenantID string, limit int) ([]DMSession, error)
}
