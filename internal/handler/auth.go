package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/chat-server-go/internal/audit"
	apperrors "github.com/openclaw/chat-server-go/internal/errors"
	"github.com/openclaw/chat-server-go/internal/model"
	"github.com/openclaw/chat-server-go/internal/service"
)

// AuthBackend is implemented by *service.AuthService.
type AuthBackend interface {
	Register(ctx context.Context, params service.RegisterParams) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

type AuthHandler struct {
	auth       AuthBackend
	loginLimit func(http.Handler) http.Handler
}

func NewAuthHandler(auth AuthBackend, loginLimit func(http.Handler) http.Handler) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		loginLimit: loginLimit,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.loginLimit != nil {
			r.Use(h.loginLimit)
		}
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)

	return r
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventRegister,
		UserID: user.ID,
		Email:  user.Email,
	})

	writeSuccess(w, http.StatusCreated, formatUser(user), "User registered successfully")
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, apperrors.ValidationError("email and password are required"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if code := apperrors.GetCode(err); code == apperrors.ErrCodeUnauthorized || code == apperrors.ErrCodeForbidden {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventLoginFailure,
				Email:   req.Email,
				Details: map[string]any{"reason": string(code)},
			})
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventLoginSuccess,
		UserID: result.User.ID,
		Email:  result.User.Email,
	})

	writeSuccess(w, http.StatusOK, map[string]any{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    result.TokenType,
		"expires_in":    result.ExpiresIn,
		"user":          formatUser(result.User),
	}, "Login successful")
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (req *refreshRequest) validate() error {
	if strings.TrimSpace(req.RefreshToken) == "" {
		return apperrors.ValidationError("refresh_token is required")
	}
	return nil
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		log.Debug().Err(err).Msg("token refresh rejected")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventTokenRefresh})

	writeSuccess(w, http.StatusOK, result, "Token refreshed successfully")
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout})

	writeSuccess(w, http.StatusOK, nil, "Logout successful")
}
