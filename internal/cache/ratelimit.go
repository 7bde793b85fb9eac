package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/metrics"
	redisclient "github.com/openclaw/chat-server-go/internal/redis"
)

// rateLimitScript is a fixed window counter. The first request in a window
// creates the key with the window as TTL; later requests increment without
// touching the TTL. Returns {allowed, count, ttl}.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = tonumber(redis.call('GET', key) or '0')
if current >= limit then
    return {0, current, redis.call('TTL', key)}
end

current = redis.call('INCR', key)
if current == 1 or redis.call('TTL', key) < 0 then
    redis.call('EXPIRE', key, window)
end

return {1, current, redis.call('TTL', key)}
`)

type RateLimitInfo struct {
	RequestsMade   int `json:"requests_made"`
	RequestsLimit  int `json:"requests_limit"`
	ResetInSeconds int `json:"reset_in_seconds"`
}

type RateLimiter struct {
	client *redisclient.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redisclient.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Allow counts one request for userID. Redis failures allow the request.
func (rl *RateLimiter) Allow(ctx context.Context, userID string) (bool, RateLimitInfo) {
	info := RateLimitInfo{RequestsLimit: rl.limit}

	result, err := rateLimitScript.Run(
		ctx,
		rl.client,
		[]string{redisclient.RateLimitKey(userID)},
		rl.limit,
		int64(rl.window.Seconds()),
	).Int64Slice()
	if err != nil || len(result) != 3 {
		log.Warn().Err(err).Str("userId", userID).Msg("rate limit check failed, allowing request")
		metrics.RateLimitDecisions.WithLabelValues("error").Inc()
		return true, info
	}

	info.RequestsMade = int(result[1])
	info.ResetInSeconds = clampTTL(result[2])

	if result[0] != 1 {
		log.Warn().Str("userId", userID).Int("requests", info.RequestsMade).Msg("rate limit exceeded")
		metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
		return false, info
	}

	metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
	return true, info
}

// Info reports the current window without counting a request.
func (rl *RateLimiter) Info(ctx context.Context, userID string) RateLimitInfo {
	info := RateLimitInfo{RequestsLimit: rl.limit}
	key := redisclient.RateLimitKey(userID)

	made, err := rl.client.Get(ctx, key).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("userId", userID).Msg("failed to read rate limit counter")
		}
		return info
	}

	ttl, err := rl.client.TTL(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to read rate limit ttl")
		return info
	}

	info.RequestsMade = made
	info.ResetInSeconds = clampTTL(int64(ttl.Seconds()))
	return info
}

func clampTTL(seconds int64) int {
	if seconds < 0 {
		return 0
	}
	return int(seconds)
}
