package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-that-is-long-enough"

func newTestService(now time.Time) *TokenService {
	return NewTokenService(testSecret, 60*time.Minute, 7*24*time.Hour).WithClock(func() time.Time { return now })
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	t.Run("access token round trip", func(t *testing.T) {
		token, err := svc.IssueAccess("user_1", "a@example.com")
		require.NoError(t, err)

		claims, err := svc.Verify(token, KindAccess)
		require.NoError(t, err)
		assert.Equal(t, "user_1", claims.UserID)
		assert.Equal(t, "a@example.com", claims.Email)
		assert.Equal(t, KindAccess, claims.Kind)
		assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	})

	t.Run("refresh token carries token id and expiry", func(t *testing.T) {
		token, issued, err := svc.IssueRefresh("user_1", "a@example.com")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(issued.ID, "token_"))
		assert.Equal(t, now.Add(7*24*time.Hour).Unix(), issued.ExpiresAt.Unix())

		claims, err := svc.Verify(token, KindRefresh)
		require.NoError(t, err)
		assert.Equal(t, issued.ID, claims.ID)
	})

	t.Run("tokens issued in the same second differ", func(t *testing.T) {
		a, _, err := svc.IssueRefresh("user_1", "a@example.com")
		require.NoError(t, err)
		b, _, err := svc.IssueRefresh("user_1", "a@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	t.Run("wrong kind", func(t *testing.T) {
		refresh, _, err := svc.IssueRefresh("user_1", "a@example.com")
		require.NoError(t, err)

		_, err = svc.Verify(refresh, KindAccess)
		assert.ErrorIs(t, err, ErrTokenKind)

		access, err := svc.IssueAccess("user_1", "a@example.com")
		require.NoError(t, err)
		_, err = svc.Verify(access, KindRefresh)
		assert.ErrorIs(t, err, ErrTokenKind)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.IssueAccess("user_1", "a@example.com")
		require.NoError(t, err)

		later := newTestService(now.Add(61 * time.Minute))
		_, err = later.Verify(token, KindAccess)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("token valid at exact expiry second", func(t *testing.T) {
		token, err := svc.IssueAccess("user_1", "a@example.com")
		require.NoError(t, err)

		atExpiry := newTestService(now.Add(60 * time.Minute))
		_, err = atExpiry.Verify(token, KindAccess)
		assert.NoError(t, err)
	})

	t.Run("tampered signature", func(t *testing.T) {
		token, err := svc.IssueAccess("user_1", "a@example.com")
		require.NoError(t, err)

		other := NewTokenService("another-secret", time.Hour, time.Hour).WithClock(func() time.Time { return now })
		_, err = other.Verify(token, KindAccess)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := svc.Verify("not.a.jwt", KindAccess)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("unexpected signing method", func(t *testing.T) {
		claims := &Claims{UserID: "user_1", Kind: KindAccess}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.Verify(token, KindAccess)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestPassword(t *testing.T) {
	bcryptCost = bcrypt.MinCost

	t.Run("hash and check", func(t *testing.T) {
		hash, err := HashPassword("Password1")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2a$"))
		assert.True(t, CheckPassword("Password1", hash))
		assert.False(t, CheckPassword("Password2", hash))
	})

	t.Run("passwords longer than 72 bytes are fully significant", func(t *testing.T) {
		base := strings.Repeat("A", 80)
		hash, err := HashPassword(base + "1")
		require.NoError(t, err)
		assert.False(t, CheckPassword(base+"2", hash))
	})
}
