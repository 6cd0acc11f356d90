package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/service"
	"github.com/google/uuid"
)

type contextKey string

const (
	OperatorIDKey contextKey = "operatorID"
	SessionIDKey  contextKey = "sessionID"
)

const (
	SessionCookie = "session"
	CSRFCookie    = "csrf"
	CSRFHeader    = "X-CSRF-Token"
)

// OperatorAuth accepts either a Bearer token or the session cookie. Cookie
// sessions must echo the csrf cookie in X-CSRF-Token on mutating requests.
func OperatorAuth(authService *service.AuthService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, fromCookie := sessionToken(r)
			if token == "" {
				writeError(w, domain.ErrUnauthorized)
				return
			}

			if fromCookie && !isSafeMethod(r.Method) && !validCSRF(r) {
				logger.Warn("[middleware.OperatorAuth] csrf mismatch", "path", r.URL.Path)
				writeError(w, domain.ErrInvalidCSRF)
				return
			}

			claims, err := authService.ValidateToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					writeError(w, domain.ErrUnauthorized)
					return
				}
				logger.Error("[middleware.OperatorAuth] token validation failed", "error", err)
				writeError(w, domain.ErrInternal)
				return
			}

			ctx := context.WithValue(r.Context(), OperatorIDKey, claims.OperatorID)
			ctx = context.WithValue(ctx, SessionIDKey, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1]), false
		}
		return "", false
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value, true
	}
	return "", false
}

func validCSRF(r *http.Request) bool {
	c, err := r.Cookie(CSRFCookie)
	if err != nil || c.Value == "" {
		return false
	}
	header := r.Header.Get(CSRFHeader)
	return subtle.ConstantTimeCompare([]byte(header), []byte(c.Value)) == 1
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func GetOperatorID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(OperatorIDKey).(uuid.UUID)
	return id, ok
}

func GetSessionID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(SessionIDKey).(uuid.UUID)
	return id, ok
}
