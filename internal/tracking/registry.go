package tracking

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

const shardCount = 32

// registry maps session keys to live session state. Striped locking bounds
// contention to per-key granularity: producers do an atomic check-and-insert,
// the event processor mutates and removes entries, and the reaper takes
// per-shard snapshot reads.
type registry struct {
	shards      [shardCount]registryShard
	idleTimeout time.Duration
	now         func() time.Time
}

type registryShard struct {
	mu      sync.Mutex
	entries map[Key]*sessionState
}

func newRegistry(idleTimeout time.Duration, now func() time.Time) *registry {
	r := &registry{
		idleTimeout: idleTimeout,
		now:         now,
	}
	for i := range r.shards {
		r.shards[i].entries = make(map[Key]*sessionState)
	}
	return r
}

func (r *registry) shardFor(key Key) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(key.TenantID))
	h.Write([]byte{0})
	h.Write([]byte(key.UserID))
	h.Write([]byte{0})
	h.Write([]byte(key.ConversationID))
	return &r.shards[h.Sum32()%shardCount]
}

// resolveOrCreate returns the live session ID for the key, creating a new
// session when none exists or the existing entry has expired. The check and
// the insert happen under one shard lock, so concurrent callers for the same
// key always observe the same winning session ID. An expired entry displaced
// here leaves the map without an end event; its persisted row keeps its last
// counters with ended_at unset. Only the reaper's sweep emits timeout ends.
func (r *registry) resolveOrCreate(key Key) (uuid.UUID, bool) {
	now := r.now()
	sh := r.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if st, ok := sh.entries[key]; ok && !st.isExpired(now, r.idleTimeout) {
		return st.sessionID, false
	}

	st := newSessionState(uuid.New(), key, now)
	sh.entries[key] = st
	return st.sessionID, true
}

// peek returns the live, non-expired session ID for the key without creating
// one.
func (r *registry) peek(key Key) (uuid.UUID, bool) {
	now := r.now()
	sh := r.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if st, ok := sh.entries[key]; ok && !st.isExpired(now, r.idleTimeout) {
		return st.sessionID, true
	}
	return uuid.Nil, false
}

// applyUserMessage updates counters for the session currently live under the
// key. Events are matched by key, not session ID: concurrent producers all
// reference the same conversation.
func (r *registry) applyUserMessage(key Key, chars int) {
	sh := r.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if st, ok := sh.entries[key]; ok {
		st.addUserMessage(chars, r.now())
	}
}

func (r *registry) applyBotMessage(key Key, chars int, responseTime time.Duration) {
	sh := r.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if st, ok := sh.entries[key]; ok {
		st.addBotMessage(chars, responseTime, r.now())
	}
}

// touch refreshes the session's activity clock for API-call and feature
// events.
func (r *registry) touch(key Key) {
	sh := r.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if st, ok := sh.entries[key]; ok {
		st.touch(r.now())
	}
}

// remove deletes the entry for the key if it still belongs to the given
// session ID and returns a final snapshot of its state. A mismatched or
// missing entry leaves the map untouched: the end event raced with another
// finalization, or a new session already replaced the expired one.
func (r *registry) remove(key Key, sessionID uuid.UUID) (SessionSnapshot, bool) {
	sh := r.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.entries[key]
	if !ok || st.sessionID != sessionID {
		return SessionSnapshot{}, false
	}
	delete(sh.entries, key)
	return st.snapshot(), true
}

// expired collects the keys and session IDs of entries past the idle
// timeout. Each shard is locked only while it is copied, never across the
// whole scan; staleness between scan and emit is tolerated by the
// processor's idempotent end handling.
func (r *registry) expired() []sessionEndEvent {
	now := r.now()
	var out []sessionEndEvent
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for key, st := range sh.entries {
			if st.isExpired(now, r.idleTimeout) {
				out = append(out, sessionEndEvent{sessionID: st.sessionID, key: key, at: now})
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// snapshotTenant copies the live sessions belonging to one tenant.
func (r *registry) snapshotTenant(tenantID string) []SessionSnapshot {
	var out []SessionSnapshot
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for key, st := range sh.entries {
			if key.TenantID == tenantID {
				out = append(out, st.snapshot())
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// snapshotAll copies every live session, used for best-effort finalization
// at shutdown.
func (r *registry) snapshotAll() []SessionSnapshot {
	var out []SessionSnapshot
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for _, st := range sh.entries {
			out = append(out, st.snapshot())
		}
		sh.mu.Unlock()
	}
	return out
}

func (r *registry) size() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
