package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/openclaw/chat-server-go/internal/audit"
	apperrors "github.com/openclaw/chat-server-go/internal/errors"
)

const (
	DefaultLoginAttempts = 5
	DefaultLoginWindow   = time.Minute
)

type attemptWindow struct {
	count int
	start time.Time
}

// LoginRateLimiter throttles credential attempts per client IP. State is
// kept in memory on each instance.
type LoginRateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	windows   map[string]*attemptWindow
	nextSweep time.Time
}

func NewLoginRateLimiter(limit int, window time.Duration) *LoginRateLimiter {
	if limit <= 0 {
		limit = DefaultLoginAttempts
	}
	if window <= 0 {
		window = DefaultLoginWindow
	}
	return &LoginRateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*attemptWindow),
	}
}

// allow counts one attempt for ip. When the attempt is refused it also
// returns how long until the window resets.
func (l *LoginRateLimiter) allow(ip string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	w, ok := l.windows[ip]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[ip] = &attemptWindow{count: 1, start: now}
		return true, 0
	}
	if w.count >= l.limit {
		return false, w.start.Add(l.window).Sub(now)
	}
	w.count++
	return true, 0
}

// sweep drops expired windows at most once per window length.
func (l *LoginRateLimiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	l.nextSweep = now.Add(l.window)
	for ip, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, ip)
		}
	}
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(audit.ClientIP(r))
		if !allowed {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]any{"path": r.URL.Path, "scope": "login"},
			})
			seconds := max(int(math.Ceil(retryAfter.Seconds())), 1)
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, http.StatusTooManyRequests,
				apperrors.New(apperrors.ErrCodeRateLimitExceeded, "Too many login attempts. Please try again later."))
			return
		}

		next.ServeHTTP(w, r)
	})
}
