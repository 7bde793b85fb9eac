package repository

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/chat-server-go/internal/model"
)

type InteractionRepository interface {
	Create(ctx context.Context, params model.CreateInteractionParams) (*model.Interaction, error)
	// FindByIDForUser returns nil when the interaction is absent or owned by
	// someone else.
	FindByIDForUser(ctx context.Context, id, userID string) (*model.Interaction, error)
	// AppendMessage atomically appends one pair and reports whether the
	// interaction still exists.
	AppendMessage(ctx context.Context, id string, pair model.MessagePair) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type interactionRepo struct {
	db *sqlx.DB
}

func NewInteractionRepository(db *sqlx.DB) InteractionRepository {
	return &interactionRepo{db: db}
}

func (r *interactionRepo) Create(ctx context.Context, params model.CreateInteractionParams) (*model.Interaction, error) {
	var interaction model.Interaction
	err := r.db.GetContext(ctx, &interaction, `
		INSERT INTO interactions (interaction_id, session_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.ID, params.SessionID, params.UserID)
	if err != nil {
		return nil, err
	}
	return &interaction, nil
}

func (r *interactionRepo) FindByIDForUser(ctx context.Context, id, userID string) (*model.Interaction, error) {
	var interaction model.Interaction
	err := r.db.GetContext(ctx, &interaction, `
		SELECT * FROM interactions WHERE interaction_id = $1 AND user_id = $2
	`, id, userID)
	return HandleNotFound(&interaction, err)
}

func (r *interactionRepo) AppendMessage(ctx context.Context, id string, pair model.MessagePair) (bool, error) {
	payload, err := json.Marshal([]model.MessagePair{pair})
	if err != nil {
		return false, err
	}

	return affected(r.db.ExecContext(ctx, `
		UPDATE interactions SET
			messages = messages || $2::jsonb,
			updated_at = $3,
			last_message_at = $3
		WHERE interaction_id = $1
	`, id, string(payload), pair.Timestamp))
}

func (r *interactionRepo) Delete(ctx context.Context, id string) (bool, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM interactions WHERE interaction_id = $1`, id))
}
