// Package httpx provides JSON response utilities.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the payload written for every 4xx/5xx response.
type ErrorBody struct {
	Error string `json:"error"`
	Rows  any    `json:"rows,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends an error payload with the given status code.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}
