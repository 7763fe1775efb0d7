package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/botforgehq/botforge/internal/domain"
)

// The read-side repositories share the Store's single connection, so the
// sqlite engine can back the full API without Postgres.

const sessionColumns = `id, tenant_id, user_id, conversation_id, started_at, ended_at, end_reason,
	message_count, total_user_chars, total_bot_chars, avg_response_time_ms`

func scanSession(row interface{ Scan(...any) error }) (*domain.DMSession, error) {
	var s domain.DMSession
	err := row.Scan(
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
		return nil, err
	}
	return &s, nil
}

func (s *Store) Get(ctx context.Context, tenantID string, sessionID uuid.UUID) (*domain.DMSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM dm_sessions WHERE tenant_id = ? AND id = ?`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, tenantID, sessionID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *Store) ListRecent(ctx context.Context, tenantID string, limit int) ([]domain.DMSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM dm_sessions
		WHERE tenant_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.DMSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

func (s *Store) TenantUsage(ctx context.Context, tenantID string, since time.Time) (*domain.UsageStats, error) {
	return s.usage(ctx, tenantID, "", since)
}

func (s *Store) UserUsage(ctx context.Context, tenantID, userID string, since time.Time) (*domain.UsageStats, error) {
	return s.usage(ctx, tenantID, userID, since)
}

func (s *Store) usage(ctx context.Context, tenantID, userID string, since time.Time) (*domain.UsageStats, error) {
	stats := &domain.UsageStats{TenantID: tenantID, UserID: userID}

	countQuery := `
		SELECT COUNT(*), COALESCE(SUM(message_count), 0)
		FROM dm_sessions
		WHERE tenant_id = ? AND started_at >= ? AND (? = '' OR user_id = ?)
	`
	err := s.db.QueryRowContext(ctx, countQuery, tenantID, since, userID, userID).
		Scan(&stats.SessionCount, &stats.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sessions: %w", err)
	}

	metricQuery := `
		SELECT m.metric_name, SUM(m.count), SUM(m.numeric_value)
		FROM dm_session_metrics m
		JOIN dm_sessions s ON s.id = m.session_id AND s.tenant_id = m.tenant_id
		WHERE m.tenant_id = ? AND s.started_at >= ? AND (? = '' OR s.user_id = ?)
		GROUP BY m.metric_name
		ORDER BY m.metric_name
	`
	rows, err := s.db.QueryContext(ctx, metricQuery, tenantID, since, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.MetricTotal
		if err := rows.Scan(&m.Name, &m.Count, &m.Value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		stats.Metrics = append(stats.Metrics, m)
	}
	return stats, rows.Err()
}

// TenantRepository implements domain.TenantRepository over the shared store
type TenantRepository struct {
	s *Store
}

// Tenants returns the tenant repository view of the store
func (s *Store) Tenants() *TenantRepository {
	return &TenantRepository{s: s}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `INSERT INTO tenants (id, name, api_key_hash, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.s.db.ExecContext(ctx, query, tenant.ID, tenant.Name, tenant.APIKeyHash, tenant.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `SELECT id, name, api_key_hash, created_at FROM tenants WHERE id = ?`

	var t domain.Tenant
	err := r.s.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.APIKeyHash, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

func (s *Store) GetPersona(ctx context.Context, tenantID, userID string) (string, error) {
	query := `SELECT persona FROM user_preferences WHERE tenant_id = ? AND user_id = ?`

	var persona string
	err := s.db.QueryRowContext(ctx, query, tenantID, userID).Scan(&persona)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DefaultPersona, nil
		}
		return "", fmt.Errorf("failed to get persona: %w", err)
	}
	return persona, nil
}

func (s *Store) SetPersona(ctx context.Context, tenantID, userID, persona string) error {
	query := `
		INSERT INTO user_preferences (tenant_id, user_id, persona)
		VALUES (?, ?, ?)
		ON CONFLICT (tenant_id, user_id) DO UPDATE
		SET persona = excluded.persona, updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.ExecContext(ctx, query, tenantID, userID, persona)
	if err != nil {
		return fmt.Errorf("failed to set persona: %w", err)
	}
	return nil
}

// SettingsRepository implements domain.SettingsRepository over the shared store
type SettingsRepository struct {
	s *Store
}

// Settings returns the settings repository view of the store
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{s: s}
}

func (r *SettingsRepository) Get(ctx context.Context, tenantID, key string) (string, error) {
	query := `SELECT setting_value FROM tenant_settings WHERE tenant_id = ? AND setting_key = ?`

	var value string
	err := r.s.db.QueryRowContext(ctx, query, tenantID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (r *SettingsRepository) Set(ctx context.Context, tenantID, key, value string) error {
	query := `
		INSERT INTO tenant_settings (tenant_id, setting_key, setting_value)
		VALUES (?, ?, ?)
		ON CONFLICT (tenant_id, setting_key) DO UPDATE
		SET setting_value = excluded.setting_value, updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.s.db.ExecContext(ctx, query, tenantID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
