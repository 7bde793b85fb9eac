// Package llm produces assistant replies from a conversation transcript.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/metrics"
	"github.com/openclaw/chat-server-go/internal/model"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ErrGeneration wraps every provider failure.
var ErrGeneration = errors.New("failed to generate AI response")

type Generator interface {
	Generate(ctx context.Context, turns []Turn) (string, error)
}

// Client is a Generator backed by a named provider.
type Client interface {
	Generator
	Name() string
	Close() error
}

// BuildTurns expands prior pairs into alternating user/assistant turns and
// appends the new user message.
func BuildTurns(history model.MessagePairs, message string) []Turn {
	turns := make([]Turn, 0, len(history)*2+1)
	for _, pair := range history {
		turns = append(turns,
			Turn{Role: RoleUser, Content: pair.UserMessage},
			Turn{Role: RoleAssistant, Content: pair.AIResponse},
		)
	}
	return append(turns, Turn{Role: RoleUser, Content: message})
}

// instrumented applies a deadline, records metrics and normalises errors.
type instrumented struct {
	Client
	timeout time.Duration
}

func Instrument(c Client, timeout time.Duration) Client {
	return &instrumented{Client: c, timeout: timeout}
}

func (i *instrumented) Generate(ctx context.Context, turns []Turn) (string, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := i.Client.Generate(ctx, turns)
	metrics.GeneratorDuration.WithLabelValues(i.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GeneratorRequests.WithLabelValues(i.Name(), "error").Inc()
		log.Error().Err(err).Str("provider", i.Name()).Int("turns", len(turns)).Msg("generator request failed")
		if errors.Is(err, ErrGeneration) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	metrics.GeneratorRequests.WithLabelValues(i.Name(), "ok").Inc()
	log.Debug().Str("provider", i.Name()).Int("length", len(reply)).Msg("received generator response")
	return reply, nil
}
