package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope. Gate errors attach the
// optional quota fields described in spec §6.
type ErrorResponse struct {
	Error         string  `json:"error"`
	Message       string  `json:"message,omitempty"`
	CurrentUsage  *int    `json:"current_usage,omitempty"`
	Limit         *int    `json:"limit,omitempty"`
	Remaining     *int    `json:"remaining,omitempty"`
	DaysLeft      *int    `json:"days_left,omitempty"`
	BillingEnd    *string `json:"billing_end,omitempty"`
	Status        *string `json:"status,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, err string, message string) {
	Respond(w, status, ErrorResponse{
		Error:   err,
		Message: message,
	})
}
