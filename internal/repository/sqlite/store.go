// Package sqlite provides a single-file TrackingStore for single-node
// deployments that do not run Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store implements domain.TrackingStore on a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and ensures
// the tracking schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// the tracking pipeline has a single writer; one connection avoids
	// SQLITE_BUSY on concurrent statements
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database handle is usable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS dm_sessions (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			end_reason TEXT,
			message_count INTEGER NOT NULL DEFAULT 0,
			total_user_chars INTEGER NOT NULL DEFAULT 0,
			total_bot_chars INTEGER NOT NULL DEFAULT 0,
			avg_response_time_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dm_sessions_tenant
		 ON dm_sessions(tenant_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS dm_session_metrics (
			session_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			numeric_value REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (session_id, metric_name)
		)`,
		`CREATE TABLE IF NOT EXISTS dm_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dm_events_tenant
		 ON dm_events(tenant_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			api_key_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			persona TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_settings (
			tenant_id TEXT NOT NULL,
			setting_key TEXT NOT NULL,
			setting_value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, setting_key)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, session *domain.DMSession) error {
	query := `
		INSERT INTO dm_sessions (id, tenant_id, user_id, conversation_id, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		session.ID.String(),
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

func (s *Store) EndSession(ctx context.Context, tenantID string, sessionID uuid.UUID, reason domain.EndReason) error {
	query := `
		UPDATE dm_sessions
		SET ended_at = CURRENT_TIMESTAMP, end_reason = ?
		WHERE tenant_id = ? AND id = ? AND ended_at IS NULL
	`
	_, err := s.db.ExecContext(ctx, query, string(reason), tenantID, sessionID.String())
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

func (s *Store) UpdateSessionCounters(ctx context.Context, tenantID string, sessionID uuid.UUID, messageCount, userChars, botChars, avgResponseTimeMs int) error {
	query := `
		UPDATE dm_sessions
		SET message_count = ?,
		    total_user_chars = ?,
		    total_bot_chars = ?,
		    avg_response_time_ms = ?
		WHERE tenant_id = ? AND id = ?
	`
	_, err := s.db.ExecContext(ctx, query, messageCount, userChars, botChars, avgResponseTimeMs, tenantID, sessionID.String())
	if err != nil {
		return fmt.Errorf("failed to update session counters: %w", err)
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, record *domain.EventRecord) error {
	var payload any
	if record.Payload != nil {
		data, err := json.Marshal(record.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		payload = string(data)
	}

	query := `
		INSERT INTO dm_events (session_id, tenant_id, user_id, conversation_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.SessionID.String(),
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

func (s *Store) UpsertMetric(ctx context.Context, tenantID string, sessionID uuid.UUID, name string, deltaCount int64, deltaValue float64) error {
	query := `
		INSERT INTO dm_session_metrics (session_id, tenant_id, metric_name, count, numeric_value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id, metric_name) DO UPDATE
		SET count = count + excluded.count,
		    numeric_value = numeric_value + excluded.numeric_value
	`
	_, err := s.db.ExecContext(ctx, query, sessionID.String(), tenantID, name, deltaCount, deltaValue)
	if err != nil {
		return fmt.Errorf("failed to upsert metric: %w", err)
	}
	return nil
}
