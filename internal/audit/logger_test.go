package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestLog(t *testing.T) {
	buf := captureLog(t)

	Log(context.Background(), Event{
		Type:    EventLoginFailure,
		Email:   "a@example.com",
		Details: map[string]any{"reason": "UNAUTHORIZED", "attempt": 3},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "security", entry["audit"])
	assert.Equal(t, "login_failure", entry["eventType"])
	assert.Equal(t, "a@example.com", entry["email"])
	assert.Equal(t, "UNAUTHORIZED", entry["reason"])
	assert.EqualValues(t, 3, entry["attempt"])
	assert.NotContains(t, entry, "userId")
}

func TestLogFromRequest(t *testing.T) {
	buf := captureLog(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("User-Agent", "curl/8.0")

	LogFromRequest(req, Event{Type: EventRateLimitExceed, UserID: "user_1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "203.0.113.7", entry["ip"])
	assert.Equal(t, "curl/8.0", entry["userAgent"])
	assert.Equal(t, "user_1", entry["userId"])
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		realIP    string
		expected  string
	}{
		{"forwarded header", "198.51.100.1", "198.51.100.2", "198.51.100.1"},
		{"real ip header", "", "198.51.100.2", "198.51.100.2"},
		{"socket address", "", "", "192.0.2.1:1234"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			assert.Equal(t, tc.expected, ClientIP(req))
		})
	}
}
