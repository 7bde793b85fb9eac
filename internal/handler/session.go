package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/chat-server-go/internal/audit"
	"github.com/openclaw/chat-server-go/internal/model"
	"github.com/openclaw/chat-server-go/internal/service"
	"github.com/openclaw/chat-server-go/internal/util"
)

// ChatBackend is implemented by *service.ChatService.
type ChatBackend interface {
	CreateSession(ctx context.Context, userID string) (*service.SessionResult, error)
	GetSession(ctx context.Context, sessionID, userID string) (*model.Session, error)
	DeleteSession(ctx context.Context, sessionID, userID string) error
	CreateInteraction(ctx context.Context, sessionID, userID string) (*service.InteractionResult, error)
	SendMessage(ctx context.Context, params service.SendMessageParams) (*service.SendMessageResult, error)
	GetChatHistory(ctx context.Context, interactionID, userID string, limit int) (*service.ChatHistory, error)
	DeleteInteraction(ctx context.Context, interactionID, userID string) error
}

type SessionHandler struct {
	chat ChatBackend
}

func NewSessionHandler(chat ChatBackend) *SessionHandler {
	return &SessionHandler{
		chat: chat,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/create", h.CreateSession)
	r.Get("/{sessionID}", h.GetSession)
	r.Delete("/{sessionID}", h.DeleteSession)

	return r
}

// POST /api/v1/session/create
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.chat.CreateSession(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, result, "Session created successfully")
}

// GET /api/v1/session/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := requireID(sessionID, util.KindSession, "session_id"); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.chat.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, formatSession(session), "Session info retrieved successfully")
}

// DELETE /api/v1/session/{sessionID}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := requireID(sessionID, util.KindSession, "session_id"); err != nil {
		writeError(w, err)
		return
	}

	if err := h.chat.DeleteSession(r.Context(), sessionID, userID); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionDelete,
		UserID:  userID,
		Details: map[string]any{"sessionId": sessionID},
	})

	writeSuccess(w, http.StatusOK, map[string]string{"session_id": sessionID}, "Session deleted successfully")
}
