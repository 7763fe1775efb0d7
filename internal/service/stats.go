package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/botforgehq/botforge/internal/domain"
)

// Default window for usage queries without an explicit range.
const defaultUsageWindow = 30 * 24 * time.Hour

// StatsService serves aggregated usage and session history for the
// analytics API.
type StatsService struct {
	usageRepo   domain.UsageRepository
	sessionRepo domain.SessionRepository
}

// NewStatsService creates a new stats service
func NewStatsService(usageRepo domain.UsageRepository, sessionRepo domain.SessionRepository) *StatsService {
	return &StatsService{
		usageRepo:   usageRepo,
		sessionRepo: sessionRepo,
	}
}

// TenantUsage returns aggregated usage for a tenant since the given time.
// A zero since defaults to the last 30 days.
func (s *StatsService) TenantUsage(ctx context.Context, tenantID string, since time.Time) (*domain.UsageStats, error) {
	if since.IsZero() {
		since = time.Now().Add(-defaultUsageWindow)
	}

	stats, err := s.usageRepo.TenantUsage(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant usage: %w", err)
	}
	return stats, nil
}

// UserUsage returns aggregated usage for one user within a tenant
func (s *StatsService) UserUsage(ctx context.Context, tenantID, userID string, since time.Time) (*domain.UsageStats, error) {
	if since.IsZero() {
		since = time.Now().Add(-defaultUsageWindow)
	}

	stats, err := s.usageRepo.UserUsage(ctx, tenantID, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get user usage: %w", err)
	}
	return stats, nil
}

// GetSession returns one persisted session by ID
func (s *StatsService) GetSession(ctx context.Context, tenantID string, sessionID uuid.UUID) (*domain.DMSession, error) {
	session, err := s.sessionRepo.Get(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListRecentSessions returns the tenant's most recently started sessions
func (s *StatsService) ListRecentSessions(ctx context.Context, tenantID string, limit int) ([]domain.DMSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	sessions, err := s.sessionRepo.ListRecent(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
