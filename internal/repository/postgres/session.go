package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

func (r *SessionRepository) Get(ctx context.Context, tenantID string, sessionID uuid.UUID) (*domain.DMSession, error) {
	query := `
		SELECT id, tenant_id, user_id, conversation_id, started_at, ended_at, end_reason,
		       message_count, total_user_chars, total_bot_chars, avg_response_time_ms
		FROM dm_sessions
		WHERE tenant_id = $1 AND id = $2
	`
	var s domain.DMSession
	err := r.pool.QueryRow(ctx, query, tenantID, sessionID).Scan(
		&s.ID,
		&s.TenantID,
		&s.UserID,
		&s.ConversationID,
		&s.StartedAt,
		&s.EndedAt,
		&s.EndReason,
		&s.MessageCount,
		&s.TotalUserChars,
		&s.TotalBotChars,
		&s.AvgResponseTimeMs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) ListRecent(ctx context.Context, tenantID string, limit int) ([]domain.DMSession, error) {
	query := `
		SELECT id, tenant_id, user_id, conversation_id, started_at, ended_at, end_reason,
		       message_count, total_user_chars, total_bot_chars, avg_response_time_ms
		FROM dm_sessions
		WHERE tenant_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.DMSession
	for rows.Next() {
		var s domain.DMSession
		if err := rows.Scan(
			&s.ID,
			&s.TenantID,
			&s.UserID,
			&s.ConversationID,
			&s.StartedAt,
			&s.EndedAt,
			&s.EndReason,
			&s.MessageCount,
			&s.TotalUserChars,
			&s.TotalBotChars,
			&s.AvgResponseTimeMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
