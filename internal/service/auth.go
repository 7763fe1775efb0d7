package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/botforgehq/botforge/internal/security"
)

// ErrInvalidCredentials is returned when a tenant ID or API key does not match
var ErrInvalidCredentials = errors.New("invalid credentials")

// TokenResponse is the result of a successful token exchange
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AuthService exchanges tenant API keys for short-lived access tokens
type AuthService struct {
	tenantRepo domain.TenantRepository
	jwtManager *security.JWTManager
}

// NewAuthService creates a new auth service
func NewAuthService(tenantRepo domain.TenantRepository, jwtManager *security.JWTManager) *AuthService {
	return &AuthService{
		tenantRepo: tenantRepo,
		jwtManager: jwtManager,
	}
}

// Authenticate verifies a tenant's API key and issues an access token
func (s *AuthService) Authenticate(ctx context.Context, tenantID, apiKey string) (*TokenResponse, error) {
	tenant, err := s.tenantRepo.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(tenant.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.GenerateAccessToken(tenant.ID, tenant.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtManager.AccessTokenTTL().Seconds()),
	}, nil
}

// RegisterTenant creates a tenant with a bcrypt hash of its API key
func (s *AuthService) RegisterTenant(ctx context.Context, id, name, apiKey string) (*domain.Tenant, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash API key: %w", err)
	}

	tenant := &domain.Tenant{
		ID:         id,
		Name:       name,
		APIKeyHash: string(hash),
		CreatedAt:  time.Now(),
	}

	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	return tenant, nil
}
