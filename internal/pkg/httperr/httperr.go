// Package httperr renders API errors in the wire format clients depend on:
// a JSON object with a single "errors" array of message strings.
package httperr

import (
	"encoding/json"
	"net/http"
)

type Response struct {
	Errors []string `json:"errors"`
}

func Write(w http.ResponseWriter, status int, messages ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(Response{Errors: messages})
}

// NotFound is the uniform response for records that are absent, soft-deleted,
// or owned by someone else. Callers must never reveal which.
func NotFound(w http.ResponseWriter) {
	Write(w, http.StatusNotFound, "not found")
}

func Internal(w http.ResponseWriter) {
	Write(w, http.StatusInternalServerError, "internal server error")
}
