package tracking

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls pipeline timing and capacity. Zero values fall back to the
// platform defaults.
type Config struct {
	IdleTimeout    time.Duration
	ReaperInterval time.Duration
	QueueSize      int
	ShutdownGrace  time.Duration
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = 5 * time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 4096
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	return c
}

// Tracker is the non-blocking interaction tracking pipeline: producers
// enqueue events from the message-handling path, a single background
// processor applies them to in-memory session state and the persistence
// sink, and a reaper times out idle sessions. No tracker method ever blocks
// or returns an error to the caller's request path.
type Tracker struct {
	cfg      Config
	store    domain.TrackingStore
	registry *registry
	events   chan Event
	now      func() time.Time
	logger   zerolog.Logger

	closing    atomic.Bool
	dropped    atomic.Int64
	stop       chan struct{}
	done       chan struct{}
	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New creates a tracker. Call Start to launch the background processor and
// reaper, and Close to drain and stop them.
func New(store domain.TrackingStore, cfg Config) *Tracker {
	return newWithClock(store, cfg, time.Now)
}

func newWithClock(store domain.TrackingStore, cfg Config, now func() time.Time) *Tracker {
	cfg = cfg.withDefaults()
	return &Tracker{
		cfg:        cfg,
		store:      store,
		registry:   newRegistry(cfg.IdleTimeout, now),
		events:     make(chan Event, cfg.QueueSize),
		now:        now,
		logger:     log.With().Str("component", "tracker").Logger(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		reaperStop: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
}

// Start launches the event processor and the timeout reaper.
func (t *Tracker) Start() {
	go t.runProcessor()
	go t.runReaper()
}

// Close shuts the pipeline down: producers start dropping immediately, every
// still-active session is finalized best-effort with reason bot_restart, and
// the processor drains buffered events within the shutdown grace period.
func (t *Tracker) Close(ctx context.Context) {
	if !t.closing.CompareAndSwap(false, true) {
		return
	}

	close(t.reaperStop)
	<-t.reaperDone

	now := t.now()
	for _, s := range t.registry.snapshotAll() {
		t.send(sessionEndEvent{
			sessionID: s.SessionID,
			key:       Key{TenantID: s.TenantID, UserID: s.UserID, ConversationID: s.ConversationID},
			reason:    domain.EndReasonBotRestart,
			at:        now,
		})
	}

	close(t.stop)

	select {
	case <-t.done:
	case <-time.After(t.cfg.ShutdownGrace):
		t.logger.Warn().Msg("shutdown grace expired before tracking queue drained")
	case <-ctx.Done():
		t.logger.Warn().Msg("shutdown context canceled before tracking queue drained")
	}
}

// ResolveOrCreateSession returns the live session ID for the conversation,
// creating a new session (and enqueueing its start event) when none exists
// or the previous one has gone idle. Malformed identifiers and calls made
// after shutdown has begun are rejected before anything enters the pipeline;
// the returned ID is uuid.Nil in those cases.
func (t *Tracker) ResolveOrCreateSession(tenantID, userID, conversationID string) uuid.UUID {
	key := Key{TenantID: tenantID, UserID: userID, ConversationID: conversationID}
	if !key.valid() {
		t.logger.Warn().Str("tenant_id", tenantID).Msg("rejected session resolve with empty identifier")
		return uuid.Nil
	}
	// once shutdown has begun the registry is being finalized; creating an
	// entry now would leave a session no processor or reaper will ever see
	if t.closing.Load() {
		return uuid.Nil
	}

	sessionID, created := t.registry.resolveOrCreate(key)
	if created {
		t.send(sessionStartEvent{sessionID: sessionID, key: key, at: t.now()})
	}
	return sessionID
}

// TrackSessionEnd records an explicit end of the conversation's live
// session, if any.
func (t *Tracker) TrackSessionEnd(tenantID, userID, conversationID string, reason domain.EndReason) {
	key := Key{TenantID: tenantID, UserID: userID, ConversationID: conversationID}
	if !key.valid() {
		return
	}
	sessionID, ok := t.registry.peek(key)
	if !ok {
		return
	}
	t.send(sessionEndEvent{sessionID: sessionID, key: key, reason: reason, at: t.now()})
}

// TrackMessageReceived records an inbound user message.
func (t *Tracker) TrackMessageReceived(tenantID, userID, conversationID, messageID string, chars int, hasAttachments bool) {
	key := Key{TenantID: tenantID, UserID: userID, ConversationID: conversationID}
	if !key.valid() {
		return
	}
	sessionID := t.ResolveOrCreateSession(tenantID, userID, conversationID)
	t.send(messageReceivedEvent{
		sessionID:      sessionID,
		key:            key,
		messageID:      messageID,
		chars:          chars,
		hasAttachments: hasAttachments,
		at:             t.now(),
	})
}

// TrackMessageSent records an outbound bot message and its response latency.
func (t *Tracker) TrackMessageSent(tenantID, userID, conversationID, messageID string, chars int, responseTime time.Duration) {
	key := Key{TenantID: tenantID, UserID: userID, ConversationID: conversationID}
	if !key.valid() {
		return
	}
	sessionID := t.ResolveOrCreateSession(tenantID, userID, conversationID)
	t.send(messageSentEvent{
		sessionID:    sessionID,
		key:          key,
		messageID:    messageID,
		chars:        chars,
		responseTime: responseTime,
		at:           t.now(),
	})
}

// TrackAPICall accounts an external API call against the conversation's
// session.
func (t *Tracker) TrackAPICall(tenantID, userID, conversationID string, apiType domain.APIType, tokens int, cost float64) {
	key := Key{TenantID: tenantID, UserID: userID, ConversationID: conversationID}
	if !key.valid() {
		return
	}
	sessionID := t.ResolveOrCreateSession(tenantID, userID, conversationID)
	t.send(apiCallEvent{
		sessionID: sessionID,
		key:       key,
		apiType:   apiType,
		tokens:    tokens,
		cost:      cost,
		at:        t.now(),
	})
}

// TrackFeatureUsed records usage of a platform feature within the
// conversation's session.
func (t *Tracker) TrackFeatureUsed(tenantID, userID, conversationID string, feature domain.FeatureType, detail string) {
	key := Key{TenantID: tenantID, UserID: userID, ConversationID: conversationID}
	if !key.valid() {
		return
	}
	sessionID := t.ResolveOrCreateSession(tenantID, userID, conversationID)
	t.send(featureUsedEvent{
		sessionID: sessionID,
		key:       key,
		feature:   feature,
		detail:    detail,
		at:        t.now(),
	})
}

// ActiveSessions returns snapshots of the tenant's live sessions.
func (t *Tracker) ActiveSessions(tenantID string) []SessionSnapshot {
	return t.registry.snapshotTenant(tenantID)
}

// ActiveSessionCount returns the number of live sessions across all tenants.
func (t *Tracker) ActiveSessionCount() int {
	return t.registry.size()
}

// Dropped returns the number of events discarded because the queue was full
// or closing.
func (t *Tracker) Dropped() int64 {
	return t.dropped.Load()
}

// send enqueues without ever blocking: events are dropped when the pipeline
// is shutting down or the queue is full. Tracking is strictly best-effort.
func (t *Tracker) send(ev Event) {
	if t.closing.Load() {
		if _, ok := ev.(sessionEndEvent); !ok {
			t.dropped.Add(1)
			t.logger.Warn().Str("event_type", string(ev.eventType())).Msg("tracking queue closed, event dropped")
			return
		}
		// final bot_restart end events still try the buffer below
	}

	select {
	case t.events <- ev:
	default:
		t.dropped.Add(1)
		t.logger.Warn().Str("event_type", string(ev.eventType())).Msg("tracking queue full, event dropped")
	}
}
