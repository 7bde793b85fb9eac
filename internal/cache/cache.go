package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/metrics"
	"github.com/openclaw/chat-server-go/internal/model"
	redisclient "github.com/openclaw/chat-server-go/internal/redis"
)

const (
	entitySession     = "session"
	entityInteraction = "interaction"
)

// Cache holds session and interaction snapshots with TTLs. Every operation
// is best effort: failures are logged and reported as a miss or false,
// never returned to the caller.
type Cache struct {
	client         *redisclient.Client
	sessionTTL     time.Duration
	interactionTTL time.Duration
}

func New(client *redisclient.Client, sessionTTL, interactionTTL time.Duration) *Cache {
	return &Cache{
		client:         client,
		sessionTTL:     sessionTTL,
		interactionTTL: interactionTTL,
	}
}

func (c *Cache) SetSession(ctx context.Context, session *model.Session) bool {
	return c.set(ctx, entitySession, redisclient.SessionKey(session.ID), session, c.sessionTTL)
}

func (c *Cache) GetSession(ctx context.Context, sessionID string) *model.Session {
	var session model.Session
	if !c.get(ctx, entitySession, redisclient.SessionKey(sessionID), &session, 0) {
		return nil
	}
	return &session
}

func (c *Cache) DeleteSession(ctx context.Context, sessionID string) bool {
	return c.delete(ctx, entitySession, redisclient.SessionKey(sessionID))
}

// TouchSession resets the session entry's TTL if the entry exists.
func (c *Cache) TouchSession(ctx context.Context, sessionID string) bool {
	ok, err := c.client.Expire(ctx, redisclient.SessionKey(sessionID), c.sessionTTL).Result()
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to refresh session ttl")
		metrics.CacheWriteFailures.WithLabelValues(entitySession).Inc()
		return false
	}
	return ok
}

func (c *Cache) SetInteraction(ctx context.Context, interaction *model.Interaction) bool {
	return c.set(ctx, entityInteraction, redisclient.InteractionKey(interaction.ID), interaction, c.interactionTTL)
}

// GetInteraction returns the cached snapshot and resets its TTL on a hit.
func (c *Cache) GetInteraction(ctx context.Context, interactionID string) *model.Interaction {
	var interaction model.Interaction
	if !c.get(ctx, entityInteraction, redisclient.InteractionKey(interactionID), &interaction, c.interactionTTL) {
		return nil
	}
	if interaction.Messages == nil {
		interaction.Messages = model.MessagePairs{}
	}
	return &interaction
}

func (c *Cache) DeleteInteraction(ctx context.Context, interactionID string) bool {
	return c.delete(ctx, entityInteraction, redisclient.InteractionKey(interactionID))
}

// InteractionExpired reports whether the interaction's entry is gone. A
// failed read counts as expired.
func (c *Cache) InteractionExpired(ctx context.Context, interactionID string) bool {
	n, err := c.client.Exists(ctx, redisclient.InteractionKey(interactionID)).Result()
	if err != nil {
		log.Warn().Err(err).Str("interactionId", interactionID).Msg("failed to check interaction expiry")
		return true
	}
	return n == 0
}

func (c *Cache) set(ctx context.Context, entity, key string, value any, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to encode cache value")
		metrics.CacheWriteFailures.WithLabelValues(entity).Inc()
		return false
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to write cache")
		metrics.CacheWriteFailures.WithLabelValues(entity).Inc()
		return false
	}
	return true
}

// get decodes key into dest. A positive refresh resets the TTL atomically
// with the read.
func (c *Cache) get(ctx context.Context, entity, key string, dest any, refresh time.Duration) bool {
	var (
		data []byte
		err  error
	)
	if refresh > 0 {
		data, err = c.client.GetEx(ctx, key, refresh).Bytes()
	} else {
		data, err = c.client.Get(ctx, key).Bytes()
	}

	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues(entity, "miss").Inc()
		return false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to read cache")
		metrics.CacheLookups.WithLabelValues(entity, "error").Inc()
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to decode cache value")
		metrics.CacheLookups.WithLabelValues(entity, "error").Inc()
		return false
	}

	metrics.CacheLookups.WithLabelValues(entity, "hit").Inc()
	return true
}

func (c *Cache) delete(ctx context.Context, entity, key string) bool {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to delete cache entry")
		metrics.CacheWriteFailures.WithLabelValues(entity).Inc()
		return false
	}
	return true
}
