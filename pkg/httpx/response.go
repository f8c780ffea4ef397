package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WriteJSON encodes v as the response body with the given status code,
// setting Content-Type and the no-store cache headers on the way out.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache marks the response uncacheable. Token and introspection
// responses must never land in a shared cache.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// ParseSpaceDelimitedFields splits a space-delimited value such as an
// OAuth2 scope parameter. Returns nil for empty or all-whitespace input.
func ParseSpaceDelimitedFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
