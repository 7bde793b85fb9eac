package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openclaw/chat-server-go/internal/util"
)

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

var (
	ErrTokenInvalid = errors.New("token signature or format invalid")
	ErrTokenKind    = errors.New("token kind mismatch")
	ErrTokenExpired = errors.New("token expired")
)

// Claims carried by both access and refresh tokens. ID (jti) is the
// refresh token record id for refresh tokens.
type Claims struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Kind   TokenKind `json:"type"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for issuing and verifying.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) IssueAccess(userID, email string) (string, error) {
	token, _, err := s.issue(userID, email, KindAccess, s.accessTTL)
	return token, err
}

func (s *TokenService) IssueRefresh(userID, email string) (string, *Claims, error) {
	return s.issue(userID, email, KindRefresh, s.refreshTTL)
}

func (s *TokenService) issue(userID, email string, kind TokenKind, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        util.NewID(util.KindToken),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, claims, nil
}

// Verify checks signature, then kind, then expiry. Callers treat every
// failure the same way; the distinct errors exist for logging.
func (s *TokenService) Verify(token string, expected TokenKind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Kind != expected {
		return nil, ErrTokenKind
	}

	if claims.ExpiresAt == nil || s.now().After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}
