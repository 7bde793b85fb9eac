package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/config"
	apperrors "github.com/openclaw/chat-server-go/internal/errors"
	"github.com/openclaw/chat-server-go/internal/llm"
	"github.com/openclaw/chat-server-go/internal/metrics"
	"github.com/openclaw/chat-server-go/internal/model"
	"github.com/openclaw/chat-server-go/internal/repository"
	"github.com/openclaw/chat-server-go/internal/sse"
	"github.com/openclaw/chat-server-go/internal/util"
)

// SnapshotCache is the write-through cache in front of the store. Every
// method is best effort: failures are reported as misses.
type SnapshotCache interface {
	SetSession(ctx context.Context, session *model.Session) bool
	GetSession(ctx context.Context, sessionID string) *model.Session
	DeleteSession(ctx context.Context, sessionID string) bool
	TouchSession(ctx context.Context, sessionID string) bool
	SetInteraction(ctx context.Context, interaction *model.Interaction) bool
	GetInteraction(ctx context.Context, interactionID string) *model.Interaction
	DeleteInteraction(ctx context.Context, interactionID string) bool
	InteractionExpired(ctx context.Context, interactionID string) bool
}

// EventPublisher fans chat events out to the user's live streams.
type EventPublisher interface {
	Publish(ctx context.Context, userID string, event sse.Event) error
}

type SessionResult struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type InteractionResult struct {
	InteractionID string    `json:"interaction_id"`
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	MessagesCount int       `json:"messages_count"`
}

type SendMessageParams struct {
	UserID        string
	Message       string
	SessionID     string
	InteractionID string
}

type SendMessageResult struct {
	SessionID     string    `json:"session_id"`
	InteractionID string    `json:"interaction_id"`
	MessageID     string    `json:"message_id"`
	UserMessage   string    `json:"user_message"`
	AIResponse    string    `json:"ai_response"`
	Timestamp     time.Time `json:"timestamp"`
}

type ChatHistory struct {
	InteractionID string             `json:"interaction_id"`
	SessionID     string             `json:"session_id"`
	Messages      model.MessagePairs `json:"messages"`
	TotalMessages int                `json:"total_messages"`
	CreatedAt     time.Time          `json:"created_at"`
	LastUpdated   time.Time          `json:"last_updated"`
}

type ChatService struct {
	sessions         repository.SessionRepository
	interactions     repository.InteractionRepository
	cache            SnapshotCache
	generator        llm.Generator
	events           EventPublisher
	maxMessageLength int
	now              func() time.Time
}

func NewChatService(
	sessions repository.SessionRepository,
	interactions repository.InteractionRepository,
	cache SnapshotCache,
	generator llm.Generator,
	events EventPublisher,
	maxMessageLength int,
) *ChatService {
	return &ChatService{
		sessions:         sessions,
		interactions:     interactions,
		cache:            cache,
		generator:        generator,
		events:           events,
		maxMessageLength: maxMessageLength,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *ChatService) CreateSession(ctx context.Context, userID string) (*SessionResult, error) {
	session, err := s.sessions.Create(ctx, model.CreateSessionParams{
		ID:     util.NewID(util.KindSession),
		UserID: userID,
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create session: %w", err))
	}

	s.cache.SetSession(ctx, session)

	log.Info().
		Str("userId", userID).
		Str("sessionId", session.ID).
		Msg("session created")

	s.publish(ctx, userID, sse.EventSessionCreated, map[string]any{
		"session_id": session.ID,
		"created_at": session.CreatedAt,
	})

	return &SessionResult{
		SessionID: session.ID,
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt,
	}, nil
}

// GetSession returns the session when it belongs to userID and marks it
// active. A session owned by someone else is reported as not found. A
// cached snapshot naming another owner is a miss; the store decides.
func (s *ChatService) GetSession(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	if cached := s.cache.GetSession(ctx, sessionID); cached != nil {
		if cached.UserID == userID {
			s.cache.TouchSession(ctx, sessionID)
			return cached, nil
		}
		log.Debug().
			Str("userId", userID).
			Str("sessionId", sessionID).
			Msg("cached session owned by another user, checking store")
	}

	session, err := s.sessions.FindByIDForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find session: %w", err))
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	now := s.now()
	if err := s.sessions.Touch(ctx, sessionID, now); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to update session activity")
	} else {
		session.LastActiveAt = now
	}

	s.cache.SetSession(ctx, session)
	return session, nil
}

// CreateInteraction opens a new interaction in a session the user owns.
func (s *ChatService) CreateInteraction(ctx context.Context, sessionID, userID string) (*InteractionResult, error) {
	if _, err := s.GetSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	interaction, err := s.createInteraction(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	return &InteractionResult{
		InteractionID: interaction.ID,
		SessionID:     interaction.SessionID,
		CreatedAt:     interaction.CreatedAt,
		MessagesCount: len(interaction.Messages),
	}, nil
}

// createInteraction assumes the caller already verified session ownership.
func (s *ChatService) createInteraction(ctx context.Context, sessionID, userID string) (*model.Interaction, error) {
	interaction, err := s.interactions.Create(ctx, model.CreateInteractionParams{
		ID:        util.NewID(util.KindInteraction),
		SessionID: sessionID,
		UserID:    userID,
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create interaction: %w", err))
	}

	if err := s.sessions.AddInteraction(ctx, sessionID, interaction.ID, s.now()); err != nil {
		return nil, apperrors.Database(fmt.Errorf("link interaction: %w", err))
	}

	s.cache.SetInteraction(ctx, interaction)
	s.cache.DeleteSession(ctx, sessionID)

	log.Info().
		Str("userId", userID).
		Str("sessionId", sessionID).
		Str("interactionId", interaction.ID).
		Msg("interaction created")

	s.publish(ctx, userID, sse.EventInteractionCreated, map[string]any{
		"session_id":     sessionID,
		"interaction_id": interaction.ID,
		"created_at":     interaction.CreatedAt,
	})

	return interaction, nil
}

// SendMessage stores one message pair, creating the session and the
// interaction on the fly when the caller did not name them.
func (s *ChatService) SendMessage(ctx context.Context, params SendMessageParams) (*SendMessageResult, error) {
	message := util.NormalizeMessage(params.Message, s.maxMessageLength)
	if message == "" {
		return nil, apperrors.ValidationError("Message must not be empty")
	}

	sessionID := params.SessionID
	if sessionID == "" {
		session, err := s.CreateSession(ctx, params.UserID)
		if err != nil {
			return nil, err
		}
		sessionID = session.SessionID
	} else if _, err := s.GetSession(ctx, sessionID, params.UserID); err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeNotFound {
			return nil, apperrors.InvalidSession()
		}
		return nil, err
	}

	var history model.MessagePairs
	interactionID := params.InteractionID
	if interactionID == "" {
		interaction, err := s.createInteraction(ctx, sessionID, params.UserID)
		if err != nil {
			return nil, err
		}
		interactionID = interaction.ID
	} else {
		if s.cache.InteractionExpired(ctx, interactionID) {
			return nil, apperrors.InteractionExpired()
		}
		interaction, err := s.loadInteraction(ctx, interactionID, params.UserID)
		if err != nil {
			return nil, err
		}
		if interaction.SessionID != sessionID {
			return nil, apperrors.NotFound("Interaction")
		}
		history = interaction.Messages
	}

	reply, err := s.generator.Generate(ctx, llm.BuildTurns(history, message))
	if err != nil {
		log.Error().
			Err(err).
			Str("userId", params.UserID).
			Str("interactionId", interactionID).
			Msg("response generation failed")
		return nil, apperrors.AIService(err)
	}

	pair := model.MessagePair{
		ID:          util.NewID(util.KindMessage),
		UserMessage: message,
		AIResponse:  reply,
		Timestamp:   s.now(),
		Metadata:    map[string]any{},
	}

	ok, err := s.interactions.AppendMessage(ctx, interactionID, pair)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("append message: %w", err))
	}
	if !ok {
		return nil, apperrors.NotFound("Interaction")
	}

	if cached := s.cache.GetInteraction(ctx, interactionID); cached != nil {
		cached.Messages = append(cached.Messages, pair)
		cached.UpdatedAt = pair.Timestamp
		cached.LastMessageAt = pair.Timestamp
		s.cache.SetInteraction(ctx, cached)
	}

	metrics.MessagesSent.Inc()

	log.Debug().
		Str("userId", params.UserID).
		Str("sessionId", sessionID).
		Str("interactionId", interactionID).
		Str("messageId", pair.ID).
		Msg("message stored")

	s.publishRaw(ctx, params.UserID, sse.Event{
		Type: sse.EventMessageCreated,
		Data: pair.ToSSEEventData(sessionID, interactionID),
	})

	return &SendMessageResult{
		SessionID:     sessionID,
		InteractionID: interactionID,
		MessageID:     pair.ID,
		UserMessage:   pair.UserMessage,
		AIResponse:    pair.AIResponse,
		Timestamp:     pair.Timestamp,
	}, nil
}

// loadInteraction prefers the cached snapshot and falls back to the store.
// Either way the result belongs to userID or NOT_FOUND is returned.
func (s *ChatService) loadInteraction(ctx context.Context, interactionID, userID string) (*model.Interaction, error) {
	if cached := s.cache.GetInteraction(ctx, interactionID); cached != nil && cached.UserID == userID {
		return cached, nil
	}

	interaction, err := s.interactions.FindByIDForUser(ctx, interactionID, userID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find interaction: %w", err))
	}
	if interaction == nil {
		return nil, apperrors.NotFound("Interaction")
	}
	return interaction, nil
}

// GetChatHistory returns the newest limit pairs in chronological order.
func (s *ChatService) GetChatHistory(ctx context.Context, interactionID, userID string, limit int) (*ChatHistory, error) {
	switch {
	case limit <= 0:
		limit = config.DefaultHistoryLimit
	case limit > config.MaxHistoryLimit:
		limit = config.MaxHistoryLimit
	}

	interaction, err := s.loadInteraction(ctx, interactionID, userID)
	if err != nil {
		return nil, err
	}

	return &ChatHistory{
		InteractionID: interaction.ID,
		SessionID:     interaction.SessionID,
		Messages:      interaction.Messages.Tail(limit),
		TotalMessages: len(interaction.Messages),
		CreatedAt:     interaction.CreatedAt,
		LastUpdated:   interaction.UpdatedAt,
	}, nil
}

func (s *ChatService) DeleteInteraction(ctx context.Context, interactionID, userID string) error {
	interaction, err := s.interactions.FindByIDForUser(ctx, interactionID, userID)
	if err != nil {
		return apperrors.Database(fmt.Errorf("find interaction: %w", err))
	}
	if interaction == nil {
		return apperrors.NotFound("Interaction")
	}

	if _, err := s.interactions.Delete(ctx, interactionID); err != nil {
		return apperrors.Database(fmt.Errorf("delete interaction: %w", err))
	}
	s.cache.DeleteInteraction(ctx, interactionID)

	if err := s.sessions.RemoveInteraction(ctx, interaction.SessionID, interactionID); err != nil {
		return apperrors.Database(fmt.Errorf("unlink interaction: %w", err))
	}

	log.Info().
		Str("userId", userID).
		Str("sessionId", interaction.SessionID).
		Str("interactionId", interactionID).
		Msg("interaction deleted")

	s.publish(ctx, userID, sse.EventInteractionDeleted, map[string]any{
		"session_id":     interaction.SessionID,
		"interaction_id": interactionID,
	})
	return nil
}

// DeleteSession removes the session and every interaction it lists.
// Interactions that fail to delete are skipped; the store cascade removes
// whatever is left.
func (s *ChatService) DeleteSession(ctx context.Context, sessionID, userID string) error {
	session, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return err
	}

	for _, interactionID := range session.InteractionIDs {
		if err := s.DeleteInteraction(ctx, interactionID, userID); err != nil {
			log.Warn().
				Err(err).
				Str("sessionId", sessionID).
				Str("interactionId", interactionID).
				Msg("failed to delete interaction with session")
			s.cache.DeleteInteraction(ctx, interactionID)
		}
	}

	if _, err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperrors.Database(fmt.Errorf("delete session: %w", err))
	}
	s.cache.DeleteSession(ctx, sessionID)

	log.Info().
		Str("userId", userID).
		Str("sessionId", sessionID).
		Int("interactions", len(session.InteractionIDs)).
		Msg("session deleted")

	s.publish(ctx, userID, sse.EventSessionDeleted, map[string]any{
		"session_id": sessionID,
	})
	return nil
}

func (s *ChatService) publish(ctx context.Context, userID, eventType string, data any) {
	s.publishRaw(ctx, userID, sse.NewEvent(eventType, data))
}

func (s *ChatService) publishRaw(ctx context.Context, userID string, event sse.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, userID, event); err != nil {
		log.Warn().
			Err(err).
			Str("userId", userID).
			Str("event", event.Type).
			Msg("failed to publish event")
	}
}
