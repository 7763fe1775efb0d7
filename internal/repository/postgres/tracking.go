package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TrackingRepository implements domain.TrackingStore on Postgres
type TrackingRepository struct {
	pool *pgxpool.Pool
}

// NewTrackingRepository creates a new tracking repository
func NewTrackingRepository(db *DB) *TrackingRepository {
	return &TrackingRepository{pool: db.Pool}
}

func (r *TrackingRepository) CreateSession(ctx context.Context, session *domain.DMSession) error {
	query := `
		INSERT INTO dm_sessions (id, tenant_id, user_id, conversation_id, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.TenantID,
		session.UserID,
		session.ConversationID,
		session.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *TrackingRepository) EndSession(ctx context.Context, tenantID string, sessionID uuid.UUID, reason domain.EndReason) error {
	query := `
		UPDATE dm_sessions
		SET ended_at = now(), end_reason = $3
		WHERE tenant_id = $1 AND id = $2 AND ended_at IS NULL
	`
	_, err := r.pool.Exec(ctx, query, tenantID, sessionID, string(reason))
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

func (r *TrackingRepository) UpdateSessionCounters(ctx context.Context, tenantID string, sessionID uuid.UUID, messageCount, userChars, botChars, avgResponseTimeMs int) error {
	query := `
		UPDATE dm_sessions
		SET message_count = $3,
		    total_user_chars = $4,
		    total_bot_chars = $5,
		    avg_response_time_ms = $6
		WHERE tenant_id = $1 AND id = $2
	`
	_, err := r.pool.Exec(ctx, query, tenantID, sessionID, messageCount, userChars, botChars, avgResponseTimeMs)
	if err != nil {
		return fmt.Errorf("failed to update session counters: %w", err)
	}
	return nil
}

func (r *TrackingRepository) AppendEvent(ctx context.Context, record *domain.EventRecord) error {
	var payload []byte
	if record.Payload != nil {
		var err error
		payload, err = json.Marshal(record.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
	}

	query := `
		INSERT INTO dm_events (session_id, tenant_id, user_id, conversation_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		record.SessionID,
		record.TenantID,
		record.UserID,
		record.ConversationID,
		string(record.Type),
		payload,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *TrackingRepository) UpsertMetric(ctx context.Context, tenantID string, sessionID uuid.UUID, name string, deltaCount int64, deltaValue float64) error {
	query := `
		INSERT INTO dm_session_metrics (session_id, tenant_id, metric_name, count, numeric_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, metric_name) DO UPDATE
		SET count = dm_session_metrics.count + EXCLUDED.count,
		    numeric_value = dm_session_metrics.numeric_value + EXCLUDED.numeric_value
	`
	_, err := r.pool.Exec(ctx, query, sessionID, tenantID, name, deltaCount, deltaValue)
	if err != nil {
		return fmt.Errorf("failed to upsert metric: %w", err)
	}
	return nil
}
