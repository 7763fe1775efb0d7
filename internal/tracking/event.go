package tracking

import (
	"time"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/google/uuid"
)

// Key identifies one conversational context for one tenant. It is the unit
// of ordering and isolation for the tracking pipeline.
type Key struct {
	TenantID       string
	UserID         string
	ConversationID string
}

func (k Key) valid() bool {
	return k.TenantID != "" && k.UserID != "" && k.ConversationID != ""
}

// Event is the closed set of observations carried from producers to the
// event processor. Variants are immutable once constructed.
type Event interface {
	eventType() domain.EventType
}

type sessionStartEvent struct {
	sessionID uuid.UUID
	key       Key
	at        time.Time
}

type sessionEndEvent struct {
	sessionID uuid.UUID
	key       Key
	reason    domain.EndReason
	at        time.Time
}

type messageReceivedEvent struct {
	sessionID      uuid.UUID
	key            Key
	messageID      string
	chars          int
	hasAttachments bool
	at             time.Time
}

type messageSentEvent struct {
	sessionID    uuid.UUID
	key          Key
	messageID    string
	chars        int
	responseTime time.Duration
	at           time.Time
}

type apiCallEvent struct {
	sessionID uuid.UUID
	key       Key
	apiType   domain.APIType
	tokens    int
	cost      float64
	at        time.Time
}

type featureUsedEvent struct {
	sessionID uuid.UUID
	key       Key
	feature   domain.FeatureType
	detail    string
	at        time.Time
}

func (sessionStartEvent) eventType() domain.EventType    { return domain.EventSessionStart }
func (sessionEndEvent) eventType() domain.EventType      { return domain.EventSessionEnd }
func (messageReceivedEvent) eventType() domain.EventType { return domain.EventMessageReceived }
func (messageSentEvent) eventType() domain.EventType     { return domain.EventMessageSent }
func (apiCallEvent) eventType() domain.EventType         { return domain.EventAPICall }
func (featureUsedEvent) eventType() domain.EventType     { return domain.EventFeatureUsed }
