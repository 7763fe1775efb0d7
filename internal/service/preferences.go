package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/botforgehq/botforge/internal/domain"
	"github.com/botforgehq/botforge/internal/security"
)

// ErrInvalidPersona is returned when a persona name fails validation
var ErrInvalidPersona = errors.New("invalid persona name")

const maxPersonaLength = 64

// Settings keys under this prefix hold secrets and are encrypted at rest.
const credentialKeyPrefix = "credential."

// PreferenceService manages per-user preferences and per-tenant settings
type PreferenceService struct {
	prefRepo     domain.PreferenceRepository
	settingsRepo domain.SettingsRepository
	encryptor    *security.Encryptor
}

// NewPreferenceService creates a new preference service
func NewPreferenceService(
	prefRepo domain.PreferenceRepository,
	settingsRepo domain.SettingsRepository,
	encryptor *security.Encryptor,
) *PreferenceService {
	return &PreferenceService{
		prefRepo:     prefRepo,
		settingsRepo: settingsRepo,
		encryptor:    encryptor,
	}
}

// GetPersona returns the user's persona, falling back to the default when the
// user has never set one.
func (s *PreferenceService) GetPersona(ctx context.Context, tenantID, userID string) (string, error) {
	persona, err := s.prefRepo.GetPersona(ctx, tenantID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get persona: %w", err)
	}
	return persona, nil
}

// SetPersona stores the user's persona choice
func (s *PreferenceService) SetPersona(ctx context.Context, tenantID, userID, persona string) error {
	persona = strings.TrimSpace(persona)
	if persona == "" || len(persona) > maxPersonaLength {
		return ErrInvalidPersona
	}

	if err := s.prefRepo.SetPersona(ctx, tenantID, userID, persona); err != nil {
		return fmt.Errorf("failed to set persona: %w", err)
	}
	return nil
}

// GetSetting returns a tenant setting, decrypting credential-class values
func (s *PreferenceService) GetSetting(ctx context.Context, tenantID, key string) (string, error) {
	value, err := s.settingsRepo.Get(ctx, tenantID, key)
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}

	if strings.HasPrefix(key, credentialKeyPrefix) {
		value, err = s.encryptor.DecryptString(value)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt setting: %w", err)
		}
	}
	return value, nil
}

// SetSetting stores a tenant setting, encrypting credential-class values
func (s *PreferenceService) SetSetting(ctx context.Context, tenantID, key, value string) error {
	if strings.HasPrefix(key, credentialKeyPrefix) {
		encrypted, err := s.encryptor.EncryptString(value)
		if err != nil {
			return fmt.Errorf("failed to encrypt setting: %w", err)
		}
		value = encrypted
	}

	if err := s.settingsRepo.Set(ctx, tenantID, key, value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return nil
}
