package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/openclaw/chat-server-go/internal/errors"
	"github.com/openclaw/chat-server-go/internal/httputil"
	"github.com/openclaw/chat-server-go/internal/middleware"
	"github.com/openclaw/chat-server-go/internal/model"
	"github.com/openclaw/chat-server-go/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	httputil.WriteSuccess(w, status, data, message)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeJSON reads the request body into dst. Bodies cut off by the size
// limit are PAYLOAD_TOO_LARGE; empty or undecodable ones are INVALID_PAYLOAD.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.PayloadTooLarge()
		}
		return apperrors.InvalidPayload("Invalid request body")
	}
	return nil
}

// requireID validates an identifier taken from the path or body.
func requireID(id, kind, field string) error {
	if !util.IsValidID(id, kind) {
		return apperrors.ValidationError("Invalid " + field)
	}
	return nil
}

// currentUser returns the authenticated user id. Routes using it are always
// behind the auth middleware.
func currentUser(r *http.Request) (string, error) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		return "", apperrors.Unauthorized("Unauthorized")
	}
	return userID, nil
}

func formatSession(session *model.Session) map[string]any {
	interactionIDs := []string(session.InteractionIDs)
	if interactionIDs == nil {
		interactionIDs = []string{}
	}
	return map[string]any{
		"session_id":      session.ID,
		"user_id":         session.UserID,
		"interaction_ids": interactionIDs,
		"created_at":      session.CreatedAt,
		"last_active":     session.LastActiveAt,
		"is_active":       true,
	}
}

func formatUser(user *model.User) map[string]any {
	return map[string]any{
		"user_id":    user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"created_at": user.CreatedAt,
	}
}
