package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/auth"
	apperrors "github.com/openclaw/chat-server-go/internal/errors"
	"github.com/openclaw/chat-server-go/internal/model"
	"github.com/openclaw/chat-server-go/internal/repository"
	"github.com/openclaw/chat-server-go/internal/util"
)

const tokenTypeBearer = "bearer"

type RegisterParams struct {
	Email    string
	Password string
	Name     string
}

type LoginResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         *model.User `json:"user"`
}

type RefreshResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Principal is the authenticated caller extracted from an access token.
type Principal struct {
	UserID string
	Email  string
}

type AuthService struct {
	users         repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	tokens        *auth.TokenService
}

func NewAuthService(
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	tokens *auth.TokenService,
) *AuthService {
	return &AuthService{
		users:         users,
		refreshTokens: refreshTokens,
		tokens:        tokens,
	}
}

func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	email := util.NormalizeEmail(params.Email)
	if len(email) > util.EmailMaxLength || !util.IsValidEmail(email) {
		return nil, apperrors.ValidationError("Invalid email address")
	}
	if err := util.ValidatePassword(params.Password); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	var name *string
	if trimmed := strings.TrimSpace(params.Name); trimmed != "" {
		if utf8.RuneCountInString(trimmed) > util.NameMaxLength {
			return nil, apperrors.ValidationError(fmt.Sprintf("Name must be at most %d characters", util.NameMaxLength))
		}
		name = &trimmed
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find user: %w", err))
	}
	if existing != nil {
		return nil, apperrors.AlreadyExists("User")
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password").WithCause(err)
	}

	user, err := s.users.Create(ctx, model.CreateUserParams{
		ID:           util.NewID(util.KindUser),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.AlreadyExists("User")
		}
		return nil, apperrors.Database(fmt.Errorf("create user: %w", err))
	}

	log.Info().Str("userId", user.ID).Msg("user registered")
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, util.NormalizeEmail(email))
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find user: %w", err))
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden("Account is disabled")
	}

	accessToken, err := s.tokens.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token").WithCause(err)
	}

	refreshToken, claims, err := s.tokens.IssueRefresh(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token").WithCause(err)
	}

	if _, err := s.refreshTokens.Create(ctx, model.CreateRefreshTokenParams{
		ID:        claims.ID,
		UserID:    user.ID,
		TokenHash: util.HashToken(refreshToken),
		ExpiresAt: claims.ExpiresAt.Time,
	}); err != nil {
		return nil, apperrors.Database(fmt.Errorf("store refresh token: %w", err))
	}

	log.Info().Str("userId", user.ID).Msg("user logged in")

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    seconds(s.tokens.AccessTTL()),
		User:         user,
	}, nil
}

// Refresh exchanges a stored, unrevoked refresh token for a new access
// token. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired refresh token").WithCause(err)
	}

	stored, err := s.refreshTokens.FindActive(ctx, claims.ID, util.HashToken(refreshToken))
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find refresh token: %w", err))
	}
	if stored == nil || stored.UserID != claims.UserID {
		return nil, apperrors.Unauthorized("Invalid or expired refresh token")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find user: %w", err))
	}
	if user == nil || !user.IsActive {
		return nil, apperrors.Unauthorized("Invalid or expired refresh token")
	}

	accessToken, err := s.tokens.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token").WithCause(err)
	}

	return &RefreshResult{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   seconds(s.tokens.AccessTTL()),
	}, nil
}

// Logout revokes the refresh token. Revoking an unknown or already
// revoked token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Verify(refreshToken, auth.KindRefresh)
	if err != nil && !errors.Is(err, auth.ErrTokenExpired) {
		return apperrors.Unauthorized("Invalid refresh token").WithCause(err)
	}

	revoked, err := s.refreshTokens.Revoke(ctx, util.HashToken(refreshToken))
	if err != nil {
		return apperrors.Database(fmt.Errorf("revoke refresh token: %w", err))
	}

	if claims != nil {
		log.Info().Str("userId", claims.UserID).Bool("revoked", revoked).Msg("user logged out")
	}
	return nil
}

// Authenticate validates an access token and returns its principal.
func (s *AuthService) Authenticate(accessToken string) (*Principal, error) {
	claims, err := s.tokens.Verify(accessToken, auth.KindAccess)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired access token").WithCause(err)
	}
	if claims.UserID == "" {
		return nil, apperrors.Unauthorized("Invalid or expired access token")
	}
	return &Principal{UserID: claims.UserID, Email: claims.Email}, nil
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
