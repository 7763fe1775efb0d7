package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrCreateSessionEnqueuesOneStart(t *testing.T) {
	tr, store, _ := newTestTracker(Config{})

	id1 := tr.ResolveOrCreateSession("t1", "u1", "c1")
	id2 := tr.ResolveOrCreateSession("t1", "u1", "c1")

	assert.Equal(t, id1, id2)
	assert.Len(t, tr.events, 1, "exactly one session-start event enqueued")

	drain(tr)
	starts := store.eventsOfType(domain.EventSessionStart)
	require.Len(t, starts, 1)
	assert.Equal(t, id1, starts[0].SessionID)
}

func TestDisplacedExpiredSessionStaysUnended(t *testing.T) {
	tr, store, clock := newTestTracker(Config{IdleTimeout: 30 * time.Minute})

	oldID := tr.ResolveOrCreateSession("t1", "u1", "c1")
	drain(tr)
	clock.Advance(31 * time.Minute)

	// with no reaper running, the next message displaces the expired entry
	tr.TrackMessageReceived("t1", "u1", "c1", "m1", 5, false)
	drain(tr)

	starts := store.eventsOfType(domain.EventSessionStart)
	require.Len(t, starts, 2)
	newID := starts[1].SessionID
	assert.NotEqual(t, oldID, newID)

	// the displaced session's row keeps its last counters, no end event
	assert.Empty(t, store.eventsOfType(domain.EventSessionEnd))
	old := store.session(oldID)
	require.NotNil(t, old)
	assert.Nil(t, old.EndedAt)
	assert.Nil(t, old.EndReason)
}

func TestResolveOrCreateSessionRejectsMalformedInput(t *testing.T) {
	tr, _, _ := newTestTracker(Config{})

	assert.Equal(t, uuid.Nil, tr.ResolveOrCreateSession("", "u1", "c1"))
	assert.Equal(t, uuid.Nil, tr.ResolveOrCreateSession("t1", "", "c1"))
	assert.Equal(t, uuid.Nil, tr.ResolveOrCreateSession("t1", "u1", ""))
	assert.Len(t, tr.events, 0, "nothing enters the pipeline")
}

func TestTrackMessageFlowFinalCounters(t *testing.T) {
	tr, store, _ := newTestTracker(Config{})

	tr.TrackMessageReceived("t1", "u1", "c1", "m1", 10, false)
	tr.TrackMessageReceived("t1", "u1", "c1", "m2", 20, false)
	tr.TrackMessageReceived("t1", "u1", "c1", "m3", 30, true)
	sessionID := tr.ResolveOrCreateSession("t1", "u1", "c1")
	tr.TrackSessionEnd("t1", "u1", "c1", domain.EndReasonUserLeft)

	drain(tr)

	sess := store.session(sessionID)
	require.NotNil(t, sess)
	assert.Equal(t, 3, sess.MessageCount)
	assert.Equal(t, 60, sess.TotalUserChars)
	assert.Equal(t, 0, sess.TotalBotChars)
	require.NotNil(t, sess.EndReason)
	assert.Equal(t, domain.EndReasonUserLeft, *sess.EndReason)

	assert.Equal(t, 0, tr.registry.size(), "finalized session leaves the registry")
	assert.Len(t, store.eventsOfType(domain.EventMessageReceived), 3)
}

func TestTrackMessageSentResponseTimes(t *testing.T) {
	tr, store, _ := newTestTracker(Config{})

	tr.TrackMessageReceived("t1", "u1", "c1", "m1", 10, false)
	tr.TrackMessageSent("t1", "u1", "c1", "m2", 50, 100*time.Millisecond)
	tr.TrackMessageSent("t1", "u1", "c1", "m3", 50, 300*time.Millisecond)
	sessionID := tr.ResolveOrCreateSession("t1", "u1", "c1")
	tr.TrackSessionEnd("t1", "u1", "c1", domain.EndReasonUserLeft)

	drain(tr)

	sess := store.session(sessionID)
	require.NotNil(t, sess)
	assert.Equal(t, 3, sess.MessageCount)
	assert.Equal(t, 100, sess.TotalBotChars)
	assert.Equal(t, 200, sess.AvgResponseTimeMs)
}

func TestDuplicateSessionEndIsNoOp(t *testing.T) {
	tr, store, _ := newTestTracker(Config{})

	sessionID := tr.ResolveOrCreateSession("t1", "u1", "c1")
	key := Key{TenantID: "t1", UserID: "u1", ConversationID: "c1"}

	// an explicit end and a reaper-issued timeout race for the same session
	tr.send(sessionEndEvent{sessionID: sessionID, key: key, reason: domain.EndReasonUserLeft, at: tr.now()})
	tr.send(sessionEndEvent{sessionID: sessionID, key: key, reason: domain.EndReasonTimeout, at: tr.now()})

	drain(tr)

	assert.Equal(t, 1, store.endSessionCalls(), "only the first end is honored")

	ends := store.eventsOfType(domain.EventSessionEnd)
	require.Len(t, ends, 2, "both end events leave an audit record")
	assert.NotContains(t, ends[0].Payload, "duplicate")
	assert.Equal(t, true, ends[1].Payload["duplicate"])
}

func TestAPICallMetricsAccumulate(t *testing.T) {
	tr, store, _ := newTestTracker(Config{})

	sessionID := tr.ResolveOrCreateSession("t1", "u1", "c1")
	tr.TrackAPICall("t1", "u1", "c1", domain.APIChat, 100, 0.01)
	tr.TrackAPICall("t1", "u1", "c1", domain.APIChat, 100, 0.01)

	drain(tr)

	m := store.metric(sessionID, string(domain.APIChat))
	assert.Equal(t, int64(200), m.Count)
	assert.InDelta(t, 0.02, m.Value, 1e-9)
}

func TestFeatureUsageMetrics(t *testing.T) {
	tr, store, _ := newTestTracker(Config{})

	sessionID := tr.ResolveOrCreateSession("t1", "u1", "c1")
	tr.TrackFeatureUsed("t1", "u1", "c1", domain.FeatureSlashCommand, "remind")
	tr.TrackFeatureUsed("t1", "u1", "c1", domain.FeatureSlashCommand, "persona")

	drain(tr)

	m := store.metric(sessionID, string(domain.FeatureSlashCommand))
	assert.Equal(t, int64(2), m.Count)
	assert.Len(t, store.eventsOfType(domain.EventFeatureUsed), 2)
}

func TestPersistenceFailureDoesNotStallPipeline(t *testing.T) {
	tr, store, _ := newTestTracker(Config{})
	store.failCreate = assert.AnError

	sessionID := tr.ResolveOrCreateSession("t1", "u1", "c1")
	tr.TrackMessageReceived("t1", "u1", "c1", "m1", 10, false)

	drain(tr)

	// the session row never landed, but in-memory state kept counting
	assert.Nil(t, store.session(sessionID))
	snaps := tr.ActiveSessions("t1")
	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].MessageCount)
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	tr, _, _ := newTestTracker(Config{QueueSize: 1})

	tr.TrackMessageReceived("t1", "u1", "c1", "m1", 10, false)
	tr.TrackMessageReceived("t1", "u1", "c1", "m2", 10, false)
	tr.TrackMessageReceived("t1", "u1", "c1", "m3", 10, false)

	assert.Greater(t, tr.Dropped(), int64(0), "overflow is dropped, never blocked on")
}

func TestCloseFinalizesActiveSessions(t *testing.T) {
	tr, store, _ := newTestTracker(Config{ShutdownGrace: time.Second})
	tr.Start()

	id1 := tr.ResolveOrCreateSession("t1", "u1", "c1")
	id2 := tr.ResolveOrCreateSession("t1", "u2", "c2")

	tr.Close(context.Background())

	for _, id := range []uuid.UUID{id1, id2} {
		sess := store.session(id)
		require.NotNil(t, sess)
		require.NotNil(t, sess.EndReason)
		assert.Equal(t, domain.EndReasonBotRestart, *sess.EndReason)
	}
	assert.Equal(t, 0, tr.ActiveSessionCount())

	// producers drop silently after shutdown
	before := tr.Dropped()
	tr.TrackMessageReceived("t1", "u1", "c1", "m9", 5, false)
	assert.Equal(t, before+1, tr.Dropped())
}

func TestProducersAfterCloseLeaveRegistryUntouched(t *testing.T) {
	tr, store, _ := newTestTracker(Config{ShutdownGrace: time.Second})
	tr.Start()

	tr.ResolveOrCreateSession("t1", "u1", "c1")
	tr.Close(context.Background())
	require.Equal(t, 0, tr.ActiveSessionCount())

	starts := len(store.eventsOfType(domain.EventSessionStart))
	before := tr.Dropped()

	// a resolve on a closed tracker must not revive the registry
	assert.Equal(t, uuid.Nil, tr.ResolveOrCreateSession("t1", "u3", "c3"))
	assert.Equal(t, 0, tr.ActiveSessionCount())
	assert.Equal(t, before, tr.Dropped())

	// each producer call is exactly one fail-fast drop, no phantom session
	tr.TrackMessageReceived("t1", "u4", "c4", "m1", 5, false)
	tr.TrackMessageSent("t1", "u4", "c4", "m2", 7, 10*time.Millisecond)
	tr.TrackAPICall("t1", "u4", "c4", domain.APIChat, 100, 0.01)
	tr.TrackFeatureUsed("t1", "u4", "c4", domain.FeatureSlashCommand, "help")
	assert.Equal(t, before+4, tr.Dropped())
	assert.Equal(t, 0, tr.ActiveSessionCount())
	assert.Equal(t, starts, len(store.eventsOfType(domain.EventSessionStart)))
}

func TestTenantIsolationAcrossPipeline(t *testing.T) {
	tr, store, _ := newTestTracker(Config{})

	idA := tr.ResolveOrCreateSession("tenant-a", "u1", "c1")
	idB := tr.ResolveOrCreateSession("tenant-b", "u1", "c1")
	require.NotEqual(t, idA, idB)

	tr.TrackMessageReceived("tenant-a", "u1", "c1", "m1", 11, false)
	drain(tr)

	assert.Len(t, tr.ActiveSessions("tenant-a"), 1)
	assert.Len(t, tr.ActiveSessions("tenant-b"), 1)
	assert.Equal(t, 11, tr.ActiveSessions("tenant-a")[0].TotalUserChars)
	assert.Equal(t, 0, tr.ActiveSessions("tenant-b")[0].TotalUserChars)

	sessA := store.session(idA)
	require.NotNil(t, sessA)
	assert.Equal(t, "tenant-a", sessA.TenantID)
}
