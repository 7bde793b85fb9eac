package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/audit"
	"github.com/openclaw/chat-server-go/internal/cache"
	apperrors "github.com/openclaw/chat-server-go/internal/errors"
)

// Limiter is the per-user fixed window counter.
type Limiter interface {
	Allow(ctx context.Context, userID string) (bool, cache.RateLimitInfo)
	Limit() int
}

// RateLimitMiddleware counts every request of the authenticated user and
// rejects it once the window is spent. It must run after AuthMiddleware.
type RateLimitMiddleware struct {
	limiter Limiter
	now     func() time.Time
}

func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, now: time.Now}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := UserID(r.Context())
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed, info := m.limiter.Allow(r.Context(), userID)

		remaining := max(info.RequestsLimit-info.RequestsMade, 0)
		resetAt := m.now().Add(time.Duration(info.ResetInSeconds) * time.Second).Unix()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.RequestsLimit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if !allowed {
			log.Warn().Str("userId", userID).Int("requestsMade", info.RequestsMade).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:   audit.EventRateLimitExceed,
				UserID: userID,
			})
			w.Header().Set("Retry-After", strconv.Itoa(max(info.ResetInSeconds, 1)))
			writeError(w, http.StatusTooManyRequests, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
