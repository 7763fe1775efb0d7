package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/botforgehq/botforge/internal/repository/redis"
)

// StartupNotifier announces instance startups. Instances booting within the
// same window share one startup session in redis, so a fleet restart produces
// a single grouped announcement instead of one per instance.
type StartupNotifier struct {
	coordinator *redis.StartupCoordinator
	logger      zerolog.Logger
}

// NewStartupNotifier creates a new startup notifier
func NewStartupNotifier(coordinator *redis.StartupCoordinator, logger zerolog.Logger) *StartupNotifier {
	return &StartupNotifier{
		coordinator: coordinator,
		logger:      logger.With().Str("component", "startup").Logger(),
	}
}

// Announce registers this instance and logs the startup session it joined
func (n *StartupNotifier) Announce(ctx context.Context, name, version string) error {
	instance := redis.StartedInstance{
		Name:      name,
		Version:   version,
		StartedAt: time.Now().UTC(),
	}

	sessionID, opened, err := n.coordinator.Join(ctx, instance)
	if err != nil {
		return fmt.Errorf("failed to join startup session: %w", err)
	}

	members, err := n.coordinator.Members(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list startup session members: %w", err)
	}

	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Name)
	}

	n.logger.Info().
		Str("session_id", sessionID).
		Bool("opened", opened).
		Strs("instances", names).
		Msg("Instance startup announced")

	return nil
}
