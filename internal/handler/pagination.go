package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/openclaw/chat-server-go/internal/config"
	apperrors "github.com/openclaw/chat-server-go/internal/errors"
)

// ParseHistoryLimit reads the limit query parameter. Absent means the
// default; anything outside 1..MaxHistoryLimit is rejected.
func ParseHistoryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return config.DefaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > config.MaxHistoryLimit {
		return 0, apperrors.ValidationError(fmt.Sprintf("limit must be between 1 and %d", config.MaxHistoryLimit))
	}
	return limit, nil
}
