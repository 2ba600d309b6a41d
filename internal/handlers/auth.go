package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"dataset-manager/internal/logging"
	"dataset-manager/internal/metrics"
)

// RequireToken wraps an http.Handler with bearer token authentication.
// When no token has been configured the wrapper is a pass-through, so a
// fresh deployment works out of the box and auth is opted into with
// tokenctl. Probe endpoints are always reachable.
func (h *Handlers) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isProbePath(r.URL.Path) || !h.db.HasToken() {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			w.Header().Set("WWW-Authenticate", `Bearer realm="dataset-manager"`)
			writeJSONError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		hash, err := h.db.TokenHash()
		if err != nil {
			logging.Error("Reading token hash: %v", err)
			writeJSONError(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			writeJSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func isProbePath(path string) bool {
	switch path {
	case "/health", "/healthz", "/livez", "/readyz", "/version":
		return true
	}
	return false
}
