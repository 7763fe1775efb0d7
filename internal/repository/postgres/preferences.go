package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PreferenceRepository implements domain.PreferenceRepository
type PreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *DB) *PreferenceRepository {
	return &PreferenceRepository{pool: db.Pool}
}

func (r *PreferenceRepository) GetPersona(ctx context.Context, tenantID, userID string) (string, error) {
	query := `
		SELECT persona FROM user_preferences
		WHERE tenant_id = $1 AND user_id = $2
	`
	var persona string
	err := r.pool.QueryRow(ctx, query, tenantID, userID).Scan(&persona)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultPersona, nil
		}
		return "", fmt.Errorf("failed to get persona: %w", err)
	}
	return persona, nil
}

func (r *PreferenceRepository) SetPersona(ctx context.Context, tenantID, userID, persona string) error {
	query := `
		INSERT INTO user_preferences (tenant_id, user_id, persona)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, user_id) DO UPDATE
		SET persona = EXCLUDED.persona, updated_at = now()
	`
	_, err := r.pool.Exec(ctx, query, tenantID, userID, persona)
	if err != nil {
		return fmt.Errorf("failed to set persona: %w", err)
	}
	return nil
}

// SettingsRepository implements domain.SettingsRepository
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{pool: db.Pool}
}

func (r *SettingsRepository) Get(ctx context.Context, tenantID, key string) (string, error) {
	query := `
		SELECT setting_value FROM tenant_settings
		WHERE tenant_id = $1 AND setting_key = $2
	`
	var value string
	err := r.pool.QueryRow(ctx, query, tenantID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting: %w", err)
	}
	return value, nil
}

func (r *SettingsRepository) Set(ctx context.Context, tenantID, key, value string) error {
	query := `
		INSERT INTO tenant_settings (tenant_id, setting_key, setting_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, setting_key) DO UPDATE
		SET setting_value = EXCLUDED.setting_value, updated_at = now()
	`
	_, err := r.pool.Exec(ctx, query, tenantID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
