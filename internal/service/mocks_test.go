package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/botforgehq/botforge/internal/domain"
)

// MockTenantRepository mocks the TenantRepository interface
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tenant), args.Error(1)
}

// MockPreferenceRepository mocks the PreferenceRepository interface
type MockPreferenceRepository struct {
	mock.Mock
}

func (m *MockPreferenceRepository) GetPersona(ctx context.Context, tenantID, userID string) (string, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.String(0), args.Error(1)
}

func (m *MockPreferenceRepository) SetPersona(ctx context.Context, tenantID, userID, persona string) error {
	args := m.Called(ctx, tenantID, userID, persona)
	return args.Error(0)
}

// MockSettingsRepository mocks the SettingsRepository interface
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context, tenantID, key string) (string, error) {
	args := m.Called(ctx, tenantID, key)
	return args.String(0), args.Error(1)
}

func (m *MockSettingsRepository) Set(ctx context.Context, tenantID, key, value string) error {
	args := m.Called(ctx, tenantID, key, value)
	return args.Error(0)
}

// MockUsageRepository mocks the UsageRepository interface
type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) TenantUsage(ctx context.Context, tenantID string, since time.Time) (*domain.UsageStats, error) {
	args := m.Called(ctx, tenantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UsageStats), args.Error(1)
}

func (m *MockUsageRepository) UserUsage(ctx context.Context, tenantID, userID string, since time.Time) (*domain.UsageStats, error) {
	args := m.Called(ctx, tenantID, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UsageStats), args.Error(1)
}

// MockSessionRepository mocks the SessionRepository interface
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Get(ctx context.Context, tenantID string, sessionID uuid.UUID) (*domain.DMSession, error) {
	args := m.Called(ctx, tenantID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DMSession), args.Error(1)
}

func (m *MockSessionRepository) ListRecent(ctx context.Context, tenantID string, limit int) ([]domain.DMSession, error) {
	args := m.Called(ctx, tenantID, limit)
	return args.Get(0).([]domain.DMSession), args.Error(1)
}
