package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository implements domain.UsageRepository
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{pool: db.Pool}
}

func (r *UsageRepository) TenantUsage(ctx context.Context, tenantID string, since time.Time) (*domain.UsageStats, error) {
	return r.usage(ctx, tenantID, "", since)
}

func (r *UsageRepository) UserUsage(ctx context.Context, tenantID, userID string, since time.Time) (*domain.UsageStats, error) {
	return r.usage(ctx, tenantID, userID, since)
}

func (r *UsageRepository) usage(ctx context.Context, tenantID, userID string, since time.Time) (*domain.UsageStats, error) {
	stats := &domain.UsageStats{TenantID: tenantID, UserID: userID}

	countQuery := `
		SELECT COUNT(*), COALESCE(SUM(message_count), 0)
		FROM dm_sessions
		WHERE tenant_id = $1 AND started_at >= $2 AND ($3 = '' OR user_id = $3)
	`
	err := r.pool.QueryRow(ctx, countQuery, tenantID, since, userID).Scan(&stats.SessionCount, &stats.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sessions: %w", err)
	}

	metricQuery := `
		SELECT m.metric_name, SUM(m.count), SUM(m.numeric_value)
		FROM dm_session_metrics m
		JOIN dm_sessions s ON s.id = m.session_id AND s.tenant_id = m.tenant_id
		WHERE m.tenant_id = $1 AND s.started_at >= $2 AND ($3 = '' OR s.user_id = $3)
		GROUP BY m.metric_name
		ORDER BY m.metric_name
	`
	rows, err := r.pool.Query(ctx, metricQuery, tenantID, since, userID)
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
	return stats, nil
}
