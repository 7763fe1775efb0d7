package tracking

import (
	"context"
	"time"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/google/uuid"
)

// runProcessor is the sole consumer of the event channel. Events are applied
// in arrival order, which yields per-key causal ordering. A failed
// persistence write is logged and skipped; the in-memory state remains the
// source of truth until finalization succeeds.
func (t *Tracker) runProcessor() {
	t.logger.Debug().Msg("event processor started")
	defer close(t.done)

	for {
		select {
		case ev := <-t.events:
			t.process(ev)
		case <-t.stop:
			// drain whatever is still buffered, then exit
			for {
				select {
				case ev := <-t.events:
					t.process(ev)
				default:
					t.logger.Debug().Msg("event processor stopped")
					return
				}
			}
		}
	}
}

func (t *Tracker) process(ev Event) {
	ctx := context.Background()

	switch e := ev.(type) {
	case sessionStartEvent:
		t.processSessionStart(ctx, e)
	case sessionEndEvent:
		t.processSessionEnd(ctx, e)
	case messageReceivedEvent:
		t.processMessageReceived(ctx, e)
	case messageSentEvent:
		t.processMessageSent(ctx, e)
	case apiCallEvent:
		t.processAPICall(ctx, e)
	case featureUsedEvent:
		t.processFeatureUsed(ctx, e)
	}
}

func (t *Tracker) processSessionStart(ctx context.Context, e sessionStartEvent) {
	session := &domain.DMSession{
		ID:             e.sessionID,
		TenantID:       e.key.TenantID,
		UserID:         e.key.UserID,
		ConversationID: e.key.ConversationID,
		StartedAt:      e.at,
	}
	if err := t.store.CreateSession(ctx, session); err != nil {
		t.logSinkError(err, e.sessionID, domain.EventSessionStart)
	}
	t.appendEvent(ctx, e.sessionID, e.key, domain.EventSessionStart, nil, e.at)
	t.logger.Debug().Str("session_id", e.sessionID.String()).Msg("session started")
}

func (t *Tracker) processSessionEnd(ctx context.Context, e sessionEndEvent) {
	final, ok := t.registry.remove(e.key, e.sessionID)
	if ok {
		if err := t.store.UpdateSessionCounters(ctx, e.key.TenantID, e.sessionID,
			final.MessageCount, final.TotalUserChars, final.TotalBotChars, final.AvgResponseTimeMs); err != nil {
			t.logSinkError(err, e.sessionID, domain.EventSessionEnd)
		}
		if err := t.store.EndSession(ctx, e.key.TenantID, e.sessionID, e.reason); err != nil {
			t.logSinkError(err, e.sessionID, domain.EventSessionEnd)
		}
		t.logger.Debug().
			Str("session_id", e.sessionID.String()).
			Str("reason", string(e.reason)).
			Msg("session ended")
	} else {
		// already finalized by a racing end event, or replaced under the
		// same key; keep the audit record either way
		t.logger.Debug().
			Str("session_id", e.sessionID.String()).
			Str("reason", string(e.reason)).
			Msg("end event for inactive session, finalization skipped")
	}

	payload := map[string]any{"reason": string(e.reason)}
	if !ok {
		payload["duplicate"] = true
	}
	t.appendEvent(ctx, e.sessionID, e.key, domain.EventSessionEnd, payload, e.at)
}

func (t *Tracker) processMessageReceived(ctx context.Context, e messageReceivedEvent) {
	t.registry.applyUserMessage(e.key, e.chars)
	t.appendEvent(ctx, e.sessionID, e.key, domain.EventMessageReceived, map[string]any{
		"message_id":  e.messageID,
		"chars":       e.chars,
		"attachments": e.hasAttachments,
	}, e.at)
}

func (t *Tracker) processMessageSent(ctx context.Context, e messageSentEvent) {
	t.registry.applyBotMessage(e.key, e.chars, e.responseTime)
	t.appendEvent(ctx, e.sessionID, e.key, domain.EventMessageSent, map[string]any{
		"message_id":       e.messageID,
		"chars":            e.chars,
		"response_time_ms": e.responseTime.Milliseconds(),
	}, e.at)
}

func (t *Tracker) processAPICall(ctx context.Context, e apiCallEvent) {
	t.registry.touch(e.key)
	t.appendEvent(ctx, e.sessionID, e.key, domain.EventAPICall, map[string]any{
		"api_type": string(e.apiType),
		"tokens":   e.tokens,
		"cost":     e.cost,
	}, e.at)
	if err := t.store.UpsertMetric(ctx, e.key.TenantID, e.sessionID, string(e.apiType), int64(e.tokens), e.cost); err != nil {
		t.logSinkError(err, e.sessionID, domain.EventAPICall)
	}
}

func (t *Tracker) processFeatureUsed(ctx context.Context, e featureUsedEvent) {
	t.registry.touch(e.key)
	t.appendEvent(ctx, e.sessionID, e.key, domain.EventFeatureUsed, map[string]any{
		"feature": string(e.feature),
		"detail":  e.detail,
	}, e.at)
	if err := t.store.UpsertMetric(ctx, e.key.TenantID, e.sessionID, string(e.feature), 1, 0); err != nil {
		t.logSinkError(err, e.sessionID, domain.EventFeatureUsed)
	}
}

func (t *Tracker) appendEvent(ctx context.Context, sessionID uuid.UUID, key Key, eventType domain.EventType, payload map[string]any, at time.Time) {
	record := &domain.EventRecord{
		SessionID:      sessionID,
		TenantID:       key.TenantID,
		UserID:         key.UserID,
		ConversationID: key.ConversationID,
		Type:           eventType,
		Payload:        payload,
		CreatedAt:      at,
	}
	if err := t.store.AppendEvent(ctx, record); err != nil {
		t.logSinkError(err, sessionID, eventType)
	}
}

func (t *Tracker) logSinkError(err error, sessionID uuid.UUID, eventType domain.EventType) {
	t.logger.Error().
		Err(err).
		Str("session_id", sessionID.String()).
		Str("event_type", string(eventType)).
		Msg("failed to persist tracking event")
}
