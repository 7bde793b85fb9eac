package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

func SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func InteractionKey(interactionID string) string {
	return fmt.Sprintf("interaction:%s", interactionID)
}

func RateLimitKey(userID string) string {
	return fmt.Sprintf("rate_limit:%s", userID)
}

func EventChannel(userID string) string {
	return fmt.Sprintf("chat_events:%s", userID)
}
