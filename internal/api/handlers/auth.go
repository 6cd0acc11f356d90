package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dom/stream-games/internal/api/middleware"
	"github.com/dom/stream-games/internal/config"
	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	cfg         *config.Config
	logger      *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, cfg *config.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg, logger: logger}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type OperatorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type LoginResponse struct {
	Operator  OperatorResponse `json:"operator"`
	Token     string           `json:"token"`
	CSRFToken string           `json:"csrfToken"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

func toOperatorResponse(o *domain.Operator) OperatorResponse {
	return OperatorResponse{ID: o.ID.String(), Username: o.Username}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, "[AuthHandler.Login]", err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, h.logger, "[AuthHandler.Login]", domain.ErrUnauthorized)
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, h.logger, "[AuthHandler.Login]", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookie,
		Value:    result.CSRFToken,
		Path:     "/",
		Expires:  result.ExpiresAt,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, LoginResponse{
		Operator:  toOperatorResponse(result.Operator),
		Token:     result.Token,
		CSRFToken: result.CSRFToken,
		ExpiresAt: result.ExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		respondError(w, h.logger, "[AuthHandler.Logout]", domain.ErrUnauthorized)
		return
	}

	if err := h.authService.Logout(r.Context(), sessionID); err != nil {
		respondError(w, h.logger, "[AuthHandler.Logout]", err)
		return
	}

	for _, name := range []string{middleware.SessionCookie, middleware.CSRFCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == middleware.SessionCookie,
			Secure:   h.cfg.IsProduction(),
			SameSite: http.SameSiteLaxMode,
		})
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := middleware.GetOperatorID(r.Context())
	if !ok {
		respondError(w, h.logger, "[AuthHandler.Me]", domain.ErrUnauthorized)
		return
	}

	operator, err := h.authService.GetOperator(r.Context(), operatorID)
	if err != nil {
		respondError(w, h.logger, "[AuthHandler.Me]", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]OperatorResponse{"operator": toOperatorResponse(operator)})
}
