package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a tenant-scoped lookup matches no row.
var ErrNotFound = errors.New("not found")

// Tenant is one isolated logical owner of sessions, events and settings,
// typically a single bot instance sharing this platform.
type Tenant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TenantRepository defines the interface for tenant storage
type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	Get(ctx context.Context, id string) (*Tenant, error)
}

// UserPreference holds per-user settings scoped to a tenant.
type UserPreference struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Persona   string    `json:"persona"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPersona is returned when a user has no stored preference.
const DefaultPersona = "obi"

// PreferenceRepository defines the interface for user preference storage
type PreferenceRepository interface {
	GetPersona(ctx context.Context, tenantID, userID string) (string, error)
	SetPersona(ctx context.Context, tenantID, userID, persona string) error
}

// SettingsRepository stores per-tenant key/value settings. Credential-class
// values are encrypted by the settings service before they reach Set.
type SettingsRepository interface {
	Get(ctx context.Context, tenantID, key string) (string, error)
	Set(ctx context.Context, tenantID, key, value string) error
}
