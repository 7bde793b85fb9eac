package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/audit"
	apperrors "github.com/openclaw/chat-server-go/internal/errors"
	"github.com/openclaw/chat-server-go/internal/service"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

// Authenticator validates a bearer access token.
type Authenticator interface {
	Authenticate(token string) (*service.Principal, error)
}

func GetPrincipal(ctx context.Context) *service.Principal {
	if principal, ok := ctx.Value(PrincipalContextKey).(*service.Principal); ok {
		return principal
	}
	return nil
}

// UserID returns the authenticated user's id, or "" outside the auth middleware.
func UserID(ctx context.Context) string {
	if principal := GetPrincipal(ctx); principal != nil {
		return principal.UserID
	}
	return ""
}

func WithPrincipal(ctx context.Context, principal *service.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, principal)
}

type AuthMiddleware struct {
	authenticator Authenticator
}

func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		principal, err := m.authenticator.Authenticate(token)
		if err != nil {
			log.Warn().Err(err).Msg("auth middleware: invalid token attempt")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]any{"path": r.URL.Path},
			})
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, apperrors.Unauthorized("Invalid or expired access token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// extractToken reads the bearer header, falling back to the token query
// parameter for EventSource clients that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}

	return r.URL.Query().Get("token")
}
