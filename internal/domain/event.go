package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a raw tracking event in the audit log.
type EventType string

const (
	EventSessionStart    EventType = "session_start"
	EventSessionEnd      EventType = "session_end"
	EventMessageReceived EventType = "message_received"
	EventMessageSent     EventType = "message_sent"
	EventAPICall         EventType = "api_call"
	EventFeatureUsed     EventType = "feature_used"
)

// APIType classifies external API calls accounted against a session.
type APIType string

const (
	APIChat    APIType = "chat"
	APIWhisper APIType = "whisper"
	APIImage   APIType = "dalle"
)

// FeatureType classifies tracked feature usage.
type FeatureType string

const (
	FeatureAudioTranscription FeatureType = "audio"
	FeatureSlashCommand       FeatureType = "slash_command"
)

// EventRecord is one append-only audit log entry. The payload is an opaque
// structured blob; the tracking core never interprets it.
type EventRecord struct {
	SessionID      uuid.UUID      `json:"session_id"`
	TenantID       string         `json:"tenant_id"`
	UserID         string         `json:"user_id"`
	ConversationID string         `json:"conversation_id"`
	Type           EventType      `json:"event_type"`
	Payload        map[string]any `json:"payload,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// MetricTotal is an aggregated per-session or per-tenant metric value.
type MetricTotal struct {
	Name  string  `json:"name"`
	Count int64   `json:"count"`
	Value float64 `json:"value"`
}

// UsageStats aggregates tracked activity for a tenant or a single user.
type UsageStats struct {
	TenantID     string        `json:"tenant_id"`
	UserID       string        `json:"user_id,omitempty"`
	SessionCount int           `json:"session_count"`
	MessageCount int           `json:"message_count"`
	Metrics      []MetricTotal `json:"metrics"`
}

// UsageRepository is the read side over metrics and session aggregates.
type UsageRepository interface {
	TenantUsage(ctx context.Context, tenantID string, since time.Time) (*UsageStats, error)
	UserUsage(ctx context.Context, tenantID, userID string, since time.Time) (*UsageStats, error)
}
