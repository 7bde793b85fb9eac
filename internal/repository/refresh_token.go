package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/chat-server-go/internal/model"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, params model.CreateRefreshTokenParams) (*model.RefreshToken, error)
	// FindActive returns the record only if it is neither revoked nor past
	// its expiry.
	FindActive(ctx context.Context, id, tokenHash string) (*model.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) (bool, error)
	RevokeExpired(ctx context.Context) (int64, error)
}

type refreshTokenRepo struct {
	db *sqlx.DB
}

func NewRefreshTokenRepository(db *sqlx.DB) RefreshTokenRepository {
	return &refreshTokenRepo{db: db}
}

func (r *refreshTokenRepo) Create(ctx context.Context, params model.CreateRefreshTokenParams) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO refresh_tokens (token_id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ID, params.UserID, params.TokenHash, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *refreshTokenRepo) FindActive(ctx context.Context, id, tokenHash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := r.db.GetContext(ctx, &token, `
		SELECT * FROM refresh_tokens
		WHERE token_id = $1
		AND token_hash = $2
		AND NOT is_revoked
		AND expires_at > NOW()
	`, id, tokenHash)
	return HandleNotFound(&token, err)
}

func (r *refreshTokenRepo) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE
		WHERE token_hash = $1 AND NOT is_revoked
	`, tokenHash))
}

func (r *refreshTokenRepo) RevokeExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE
		WHERE NOT is_revoked AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
