package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	startupCurrentKey = "startup:current"
	startupSessionKey = "startup:session:"
	startupSessionTTL = 10 * time.Minute
)

// StartedInstance describes one platform instance that joined a startup
// session.
type StartedInstance struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

// StartupCoordinator groups instances that boot within a short window into a
// shared startup session, so notifications can be combined instead of sent
// once per instance. State lives in redis rather than process globals, which
// keeps it correct across processes and restarts.
type StartupCoordinator struct {
	client *Client
}

// NewStartupCoordinator creates a new startup coordinator
func NewStartupCoordinator(client *Client) *StartupCoordinator {
	return &StartupCoordinator{client: client}
}

// Join registers this instance in the current startup session, creating the
// session if none is open. Returns the session ID and whether this instance
// opened it.
func (c *StartupCoordinator) Join(ctx context.Context, instance StartedInstance) (string, bool, error) {
	sessionID := uuid.New().String()

	created, err := c.client.rdb.SetNX(ctx, startupCurrentKey, sessionID, startupSessionTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to open startup session: %w", err)
	}
	if !created {
		sessionID, err = c.client.rdb.Get(ctx, startupCurrentKey).Result()
		if err != nil {
			return "", false, fmt.Errorf("failed to read current startup session: %w", err)
		}
	}

	data, err := json.Marshal(instance)
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal instance info: %w", err)
	}

	membersKey := startupSessionKey + sessionID
	pipe := c.client.rdb.Pipeline()
	pipe.HSet(ctx, membersKey, instance.Name, data)
	pipe.Expire(ctx, membersKey, startupSessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", false, fmt.Errorf("failed to register instance in startup session: %w", err)
	}

	return sessionID, created, nil
}

// Members lists the instances that have joined the given startup session.
func (c *StartupCoordinator) Members(ctx context.Context, sessionID string) ([]StartedInstance, error) {
	values, err := c.client.rdb.HGetAll(ctx, startupSessionKey+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list startup session members: %w", err)
	}

	instances := make([]StartedInstance, 0, len(values))
	for _, raw := range values {
		var inst StartedInstance
		if err := json.Unmarshal([]byte(raw), &inst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instance info: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, nil
}
