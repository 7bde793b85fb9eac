package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/cache"
	apperrors "github.com/openclaw/chat-server-go/internal/errors"
	"github.com/openclaw/chat-server-go/internal/service"
	"github.com/openclaw/chat-server-go/internal/util"
)

// RateLimitReader reports the caller's current window without counting.
type RateLimitReader interface {
	Info(ctx context.Context, userID string) cache.RateLimitInfo
}

type ChatHandler struct {
	chat      ChatBackend
	limits    RateLimitReader
	rateLimit func(http.Handler) http.Handler
}

func NewChatHandler(
	chat ChatBackend,
	limits RateLimitReader,
	rateLimit func(http.Handler) http.Handler,
) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		limits:    limits,
		rateLimit: rateLimit,
	}
}

func (h *ChatHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.rateLimit != nil {
			r.Use(h.rateLimit)
		}
		r.Post("/message", h.SendMessage)
	})
	r.Post("/interaction/new", h.CreateInteraction)
	r.Get("/history/{interactionID}", h.GetChatHistory)
	r.Delete("/interaction/{interactionID}", h.DeleteInteraction)
	r.Get("/rate-limit", h.GetRateLimit)

	return r
}

// POST /api/v1/chat/message
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		SessionID     string `json:"session_id"`
		InteractionID string `json:"interaction_id"`
		Message       string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, apperrors.ValidationError("message is required"))
		return
	}
	if req.SessionID != "" {
		if err := requireID(req.SessionID, util.KindSession, "session_id"); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.InteractionID != "" {
		if err := requireID(req.InteractionID, util.KindInteraction, "interaction_id"); err != nil {
			writeError(w, err)
			return
		}
	}

	result, err := h.chat.SendMessage(r.Context(), service.SendMessageParams{
		UserID:        userID,
		Message:       req.Message,
		SessionID:     req.SessionID,
		InteractionID: req.InteractionID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, "Message sent successfully")
}

// POST /api/v1/chat/interaction/new
func (h *ChatHandler) CreateInteraction(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := requireID(req.SessionID, util.KindSession, "session_id"); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.chat.CreateInteraction(r.Context(), req.SessionID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, result, "New interaction created successfully")
}

// GET /api/v1/chat/history/{interactionID}?limit=
func (h *ChatHandler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	interactionID := chi.URLParam(r, "interactionID")
	if err := requireID(interactionID, util.KindInteraction, "interaction_id"); err != nil {
		writeError(w, err)
		return
	}

	limit, err := ParseHistoryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	history, err := h.chat.GetChatHistory(r.Context(), interactionID, userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, history, "Chat history retrieved successfully")
}

// DELETE /api/v1/chat/interaction/{interactionID}
func (h *ChatHandler) DeleteInteraction(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	interactionID := chi.URLParam(r, "interactionID")
	if err := requireID(interactionID, util.KindInteraction, "interaction_id"); err != nil {
		writeError(w, err)
		return
	}

	if err := h.chat.DeleteInteraction(r.Context(), interactionID, userID); err != nil {
		writeError(w, err)
		return
	}

	log.Info().Str("userId", userID).Str("interactionId", interactionID).Msg("interaction deleted via api")

	writeSuccess(w, http.StatusOK, map[string]string{"interaction_id": interactionID}, "Interaction deleted successfully")
}

// GET /api/v1/chat/rate-limit
func (h *ChatHandler) GetRateLimit(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.limits.Info(r.Context(), userID), "Rate limit info retrieved successfully")
}
