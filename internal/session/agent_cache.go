// Package session keeps the last-known agent profile between requests and
// resolves the AgentContext a workflow runs with.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/agent-wallet/internal/domain"
	customError "github.com/segyhp/agent-wallet/pkg/errors"
)

const keyPrefix = "agent-wallet:agent:"

// AgentCache stores the last-known agent profile in redis.
type AgentCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewAgentCache creates a cache; a zero ttl keeps entries until overwritten.
func NewAgentCache(client *redis.Client, ttl time.Duration) *AgentCache {
	return &AgentCache{redis: client, ttl: ttl}
}

func cacheKey(agentID string) string {
	return keyPrefix + agentID
}

// Store saves the agent profile.
func (c *AgentCache) Store(ctx context.Context, agent *domain.Agent) error {
	if c == nil || agent == nil {
		return nil
	}

	encoded, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to encode agent: %w", err)
	}

	if err := c.redis.Set(ctx, cacheKey(agent.AgentID), encoded, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

// Load returns the cached profile, or nil when nothing is cached.
func (c *AgentCache) Load(ctx context.Context, agentID string) (*domain.Agent, error) {
	if c == nil {
		return nil, nil
	}

	raw, err := c.redis.Get(ctx, cacheKey(agentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}

	var agent domain.Agent
	if err := json.Unmarshal(raw, &agent); err != nil {
		return nil, fmt.Errorf("failed to decode cached agent: %w", err)
	}
	return &agent, nil
}

// Forget drops the cached profile.
func (c *AgentCache) Forget(ctx context.Context, agentID string) error {
	if c == nil {
		return nil
	}
	if err := c.redis.Del(ctx, cacheKey(agentID)).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

// Resolve picks the agent a workflow runs with: the navigation payload when
// present, else the cached session, else none.
func (c *AgentCache) Resolve(ctx context.Context, agentID string, payload *domain.Agent) (domain.AgentContext, error) {
	if payload != nil {
		if payload.AgentID == "" {
			payload.AgentID = agentID
		}
		return domain.AgentContext{Agent: payload, Source: domain.AgentSourcePayload}, nil
	}

	cached, err := c.Load(ctx, agentID)
	if err != nil {
		return domain.AgentContext{Source: domain.AgentSourceNone}, err
	}
	if cached != nil {
		return domain.AgentContext{Agent: cached, Source: domain.AgentSourceSession}, nil
	}

	return domain.AgentContext{Source: domain.AgentSourceNone}, nil
}
