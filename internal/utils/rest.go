package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the uniform error envelope for every API error,
// including guard 402/503 responses: {"error": "..."}.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondWithError wraps a message in the error envelope.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithJSON writes payload as a JSON response with the given status.
// The status line is committed before encoding, so an encode failure can
// only truncate the body, never rewrite the code.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
		return err
	}
	return nil
}
