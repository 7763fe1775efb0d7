package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tracking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSession(tenantID string) *domain.DMSession {
	return &domain.DMSession{
		ID:             uuid.New(),
		TenantID:       tenantID,
		UserID:         "u1",
		ConversationID: "c1",
		StartedAt:      time.Now().UTC(),
	}
}

func TestCreateSessionIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	sess := testSession("t1")

	require.NoError(t, store.CreateSession(ctx, sess))
	require.NoError(t, store.CreateSession(ctx, sess), "duplicate insert is a no-op")

	var count int
	err := store.db.QueryRow(`SELECT COUNT(*) FROM dm_sessions WHERE id = ?`, sess.ID.String()).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateSessionStartsWithZeroCounters(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	sess := testSession("t1")
	require.NoError(t, store.CreateSession(ctx, sess))

	var msgs, userChars, botChars int
	err := store.db.QueryRow(
		`SELECT message_count, total_user_chars, total_bot_chars FROM dm_sessions WHERE id = ?`,
		sess.ID.String(),
	).Scan(&msgs, &userChars, &botChars)
	require.NoError(t, err)
	assert.Equal(t, 0, msgs)
	assert.Equal(t, 0, userChars)
	assert.Equal(t, 0, botChars)

	// metric rows only come into existence on the first upsert for a name
	var metrics int
	err = store.db.QueryRow(`SELECT COUNT(*) FROM dm_session_metrics WHERE session_id = ?`, sess.ID.String()).Scan(&metrics)
	require.NoError(t, err)
	assert.Equal(t, 0, metrics)

	require.NoError(t, store.UpsertMetric(ctx, "t1", sess.ID, "chat", 10, 0.001))
	err = store.db.QueryRow(`SELECT COUNT(*) FROM dm_session_metrics WHERE session_id = ?`, sess.ID.String()).Scan(&metrics)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics)
}

func TestEndSessionScopedToTenant(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	sess := testSession("t1")
	require.NoError(t, store.CreateSession(ctx, sess))

	// a different tenant cannot end this session
	require.NoError(t, store.EndSession(ctx, "t2", sess.ID, domain.EndReasonUserLeft))

	var reason *string
	err := store.db.QueryRow(`SELECT end_reason FROM dm_sessions WHERE id = ?`, sess.ID.String()).Scan(&reason)
	require.NoError(t, err)
	assert.Nil(t, reason)

	require.NoError(t, store.EndSession(ctx, "t1", sess.ID, domain.EndReasonUserLeft))
	err = store.db.QueryRow(`SELECT end_reason FROM dm_sessions WHERE id = ?`, sess.ID.String()).Scan(&reason)
	require.NoError(t, err)
	require.NotNil(t, reason)
	assert.Equal(t, string(domain.EndReasonUserLeft), *reason)
}

func TestUpsertMetricAccumulates(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	sess := testSession("t1")
	require.NoError(t, store.CreateSession(ctx, sess))

	require.NoError(t, store.UpsertMetric(ctx, "t1", sess.ID, "chat", 100, 0.01))
	require.NoError(t, store.UpsertMetric(ctx, "t1", sess.ID, "chat", 100, 0.01))

	var count int64
	var value float64
	err := store.db.QueryRow(
		`SELECT count, numeric_value FROM dm_session_metrics WHERE session_id = ? AND metric_name = ?`,
		sess.ID.String(), "chat",
	).Scan(&count, &value)
	require.NoError(t, err)
	assert.Equal(t, int64(200), count)
	assert.InDelta(t, 0.02, value, 1e-9)
}

func TestAppendEventStoresPayload(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	sess := testSession("t1")
	require.NoError(t, store.CreateSession(ctx, sess))

	record := &domain.EventRecord{
		SessionID:      sess.ID,
		TenantID:       "t1",
		UserID:         "u1",
		ConversationID: "c1",
		Type:           domain.EventMessageReceived,
		Payload:        map[string]any{"message_id": "m1", "chars": 10},
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.AppendEvent(ctx, record))

	var eventType, payload string
	err := store.db.QueryRow(
		`SELECT event_type, payload FROM dm_events WHERE session_id = ?`, sess.ID.String(),
	).Scan(&eventType, &payload)
	require.NoError(t, err)
	assert.Equal(t, "message_received", eventType)
	assert.Contains(t, payload, `"message_id":"m1"`)
}
