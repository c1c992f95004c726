package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"hookd/internal/pkg/httperr"
)

// RequireFields gates POST/PUT bodies: each named top-level JSON field must
// be present and non-empty. The body is buffered and restored so the handler
// can decode it again.
func RequireFields(fields ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				httperr.Write(w, http.StatusBadRequest, "invalid request body")
				return
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			var doc map[string]json.RawMessage
			if err := json.Unmarshal(body, &doc); err != nil {
				httperr.Write(w, http.StatusUnprocessableEntity, "invalid json body")
				return
			}

			for _, field := range fields {
				raw, ok := doc[field]
				if !ok || isEmpty(raw) {
					httperr.Write(w, http.StatusUnprocessableEntity, "missing "+field)
					return
				}
			}

			next(w, r)
		}
	}
}

func isEmpty(raw json.RawMessage) bool {
	s := string(raw)
	return s == "null" || s == `""`
}
