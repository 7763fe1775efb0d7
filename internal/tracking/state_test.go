package tracking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionStateCounters(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := newSessionState(uuid.New(), Key{TenantID: "t1", UserID: "u1", ConversationID: "c1"}, now)

	st.addUserMessage(10, now.Add(time.Second))
	st.addUserMessage(20, now.Add(2*time.Second))
	st.addBotMessage(35, 800*time.Millisecond, now.Add(3*time.Second))

	assert.Equal(t, 3, st.messageCount)
	assert.Equal(t, 2, st.userMessageCount)
	assert.Equal(t, 1, st.botMessageCount)
	assert.Equal(t, st.messageCount, st.userMessageCount+st.botMessageCount)
	assert.Equal(t, 30, st.totalUserChars)
	assert.Equal(t, 35, st.totalBotChars)
	assert.Equal(t, now.Add(3*time.Second), st.lastActivity)
}

func TestSessionStateAvgResponseTime(t *testing.T) {
	now := time.Now()
	st := newSessionState(uuid.New(), Key{TenantID: "t1", UserID: "u1", ConversationID: "c1"}, now)

	assert.Equal(t, 0, st.avgResponseTimeMs(), "no responses yet")

	st.addBotMessage(5, 100*time.Millisecond, now)
	st.addBotMessage(5, 300*time.Millisecond, now)
	assert.Equal(t, 200, st.avgResponseTimeMs())
}

func TestSessionStateExpiry(t *testing.T) {
	now := time.Now()
	st := newSessionState(uuid.New(), Key{TenantID: "t1", UserID: "u1", ConversationID: "c1"}, now)

	assert.False(t, st.isExpired(now.Add(29*time.Minute), 30*time.Minute))
	assert.False(t, st.isExpired(now.Add(30*time.Minute), 30*time.Minute))
	assert.True(t, st.isExpired(now.Add(31*time.Minute), 30*time.Minute))

	st.touch(now.Add(25 * time.Minute))
	assert.False(t, st.isExpired(now.Add(31*time.Minute), 30*time.Minute))
}
