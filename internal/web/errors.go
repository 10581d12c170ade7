package web

import (
	"net/http"

	"github.com/JonMunkholm/tablexport/internal/logging"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// respondError logs the failure with the request ID and writes it as JSON.
func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", message,
	)
	respondJSON(w, status, ErrorResponse{Error: message, Status: status})
}
