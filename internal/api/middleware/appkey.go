package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/dom/stream-games/internal/domain"
)

// AppKey gates public routes behind a shared key sent as X-App-Key,
// X-Palpite-Key or ?key=. With no key configured every request is refused.
func AppKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, domain.ErrPublicDisabled)
				return
			}

			got := r.Header.Get("X-App-Key")
			if got == "" {
				got = r.Header.Get("X-Palpite-Key")
			}
			if got == "" {
				got = r.URL.Query().Get("key")
			}

			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeError(w, domain.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
