package tracking

import (
	"time"

	"github.com/google/uuid"
)

// sessionState is the in-memory state of one active session. After creation
// it is mutated only by the event processor, always under its shard lock.
type sessionState struct {
	sessionID        uuid.UUID
	key              Key
	createdAt        time.Time
	lastActivity     time.Time
	messageCount     int
	userMessageCount int
	botMessageCount  int
	totalUserChars   int
	totalBotChars    int
	responseTimes    []time.Duration
}

func newSessionState(sessionID uuid.UUID, key Key, now time.Time) *sessionState {
	return &sessionState{
		sessionID:    sessionID,
		key:          key,
		createdAt:    now,
		lastActivity: now,
	}
}

func (s *sessionState) addUserMessage(chars int, now time.Time) {
	s.messageCount++
	s.userMessageCount++
	s.totalUserChars += chars
	s.lastActivity = now
}

func (s *sessionState) addBotMessage(chars int, responseTime time.Duration, now time.Time) {
	s.messageCount++
	s.botMessageCount++
	s.totalBotChars += chars
	s.responseTimes = append(s.responseTimes, responseTime)
	s.lastActivity = now
}

func (s *sessionState) touch(now time.Time) {
	s.lastActivity = now
}

// avgResponseTimeMs returns the mean observed response latency in
// milliseconds, 0 when no bot message has been sent yet.
func (s *sessionState) avgResponseTimeMs() int {
	if len(s.responseTimes) == 0 {
		return 0
	}
	var sum time.Duration
	for _, rt := range s.responseTimes {
		sum += rt
	}
	return int(sum.Milliseconds()) / len(s.responseTimes)
}

func (s *sessionState) isExpired(now time.Time, idleTimeout time.Duration) bool {
	return now.Sub(s.lastActivity) > idleTimeout
}

// SessionSnapshot is a read-only copy of an active session's state, exposed
// to the analytics API.
type SessionSnapshot struct {
	SessionID         uuid.UUID `json:"session_id"`
	TenantID          string    `json:"tenant_id"`
	UserID            string    `json:"user_id"`
	ConversationID    string    `json:"conversation_id"`
	StartedAt         time.Time `json:"started_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
	MessageCount      int       `json:"message_count"`
	UserMessageCount  int       `json:"user_message_count"`
	BotMessageCount   int       `json:"bot_message_count"`
	TotalUserChars    int       `json:"total_user_chars"`
	TotalBotChars     int       `json:"total_bot_chars"`
	AvgResponseTimeMs int       `json:"avg_response_time_ms"`
}

func (s *sessionState) snapshot() SessionSnapshot {
	return SessionSnapshot{
		SessionID:         s.sessionID,
		TenantID:          s.key.TenantID,
		UserID:            s.key.UserID,
		ConversationID:    s.key.ConversationID,
		StartedAt:         s.createdAt,
		LastActivityAt:    s.lastActivity,
		MessageCount:      s.messageCount,
		UserMessageCount:  s.userMessageCount,
		BotMessageCount:   s.botMessageCount,
		TotalUserChars:    s.totalUserChars,
		TotalBotChars:     s.totalBotChars,
		AvgResponseTimeMs: s.avgResponseTimeMs(),
	}
}
