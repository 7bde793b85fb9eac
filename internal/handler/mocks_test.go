package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/chat-server-go/internal/cache"
	"github.com/openclaw/chat-server-go/internal/middleware"
	"github.com/openclaw/chat-server-go/internal/model"
	"github.com/openclaw/chat-server-go/internal/service"
)

type mockChat struct {
	createSessionFunc     func(ctx context.Context, userID string) (*service.SessionResult, error)
	getSessionFunc        func(ctx context.Context, sessionID, userID string) (*model.Session, error)
	deleteSessionFunc     func(ctx context.Context, sessionID, userID string) error
	createInteractionFunc func(ctx context.Context, sessionID, userID string) (*service.InteractionResult, error)
	sendMessageFunc       func(ctx context.Context, params service.SendMessageParams) (*service.SendMessageResult, error)
	getChatHistoryFunc    func(ctx context.Context, interactionID, userID string, limit int) (*service.ChatHistory, error)
	deleteInteractionFunc func(ctx context.Context, interactionID, userID string) error
}

func (m *mockChat) CreateSession(ctx context.Context, userID string) (*service.SessionResult, error) {
	return m.createSessionFunc(ctx, userID)
}

func (m *mockChat) GetSession(ctx context.Context, sessionID, userID string) (*model.Session, error) {
	return m.getSessionFunc(ctx, sessionID, userID)
}

func (m *mockChat) DeleteSession(ctx context.Context, sessionID, userID string) error {
	return m.deleteSessionFunc(ctx, sessionID, userID)
}

func (m *mockChat) CreateInteraction(ctx context.Context, sessionID, userID string) (*service.InteractionResult, error) {
	return m.createInteractionFunc(ctx, sessionID, userID)
}

func (m *mockChat) SendMessage(ctx context.Context, params service.SendMessageParams) (*service.SendMessageResult, error) {
	return m.sendMessageFunc(ctx, params)
}

func (m *mockChat) GetChatHistory(ctx context.Context, interactionID, userID string, limit int) (*service.ChatHistory, error) {
	return m.getChatHistoryFunc(ctx, interactionID, userID, limit)
}

func (m *mockChat) DeleteInteraction(ctx context.Context, interactionID, userID string) error {
	return m.deleteInteractionFunc(ctx, interactionID, userID)
}

type mockAuth struct {
	registerFunc func(ctx context.Context, params service.RegisterParams) (*model.User, error)
	loginFunc    func(ctx context.Context, email, password string) (*service.LoginResult, error)
	refreshFunc  func(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	logoutFunc   func(ctx context.Context, refreshToken string) error
}

func (m *mockAuth) Register(ctx context.Context, params service.RegisterParams) (*model.User, error) {
	return m.registerFunc(ctx, params)
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuth) Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error) {
	return m.refreshFunc(ctx, refreshToken)
}

func (m *mockAuth) Logout(ctx context.Context, refreshToken string) error {
	return m.logoutFunc(ctx, refreshToken)
}

type mockLimits struct {
	info cache.RateLimitInfo
}

func (m *mockLimits) Info(ctx context.Context, userID string) cache.RateLimitInfo {
	return m.info
}

// asUser wraps a router so every request carries the given principal.
func asUser(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithPrincipal(r.Context(), &service.Principal{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
