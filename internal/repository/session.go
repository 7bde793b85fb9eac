package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/chat-server-go/internal/model"
)

type SessionRepository interface {
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// FindByIDForUser returns nil when the session is absent or owned by
	// someone else.
	FindByIDForUser(ctx context.Context, id, userID string) (*model.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	AddInteraction(ctx context.Context, id, interactionID string, at time.Time) error
	RemoveInteraction(ctx context.Context, id, interactionID string) error
	Delete(ctx context.Context, id string) (bool, error)
}

type sessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (session_id, user_id)
		VALUES ($1, $2)
		RETURNING *
	`, params.ID, params.UserID)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) FindByIDForUser(ctx context.Context, id, userID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE session_id = $1 AND user_id = $2
	`, id, userID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_active_at = $2 WHERE session_id = $1
	`, id, at)
	return err
}

func (r *sessionRepo) AddInteraction(ctx context.Context, id, interactionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			interaction_ids = array_append(interaction_ids, $2),
			last_active_at = $3
		WHERE session_id = $1
	`, id, interactionID, at)
	return err
}

func (r *sessionRepo) RemoveInteraction(ctx context.Context, id, interactionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET interaction_ids = array_remove(interaction_ids, $2)
		WHERE session_id = $1
	`, id, interactionID)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	return affected(r.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1`, id))
}
