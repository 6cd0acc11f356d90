package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dom/stream-games/internal/domain"
)

func writeError(w http.ResponseWriter, e *domain.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   e.Code,
		"message": e.Message,
	})
}
