package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tphummel/devices/internal/models"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(models.ErrorResponse{
		Message:   msg,
		Code:      code,
		Timestamp: time.Now().UTC().Format(models.TimestampFormat),
		Path:      r.URL.Path,
	})
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
