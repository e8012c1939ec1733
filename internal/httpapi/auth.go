package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

const secretHeader = "X-Webhook-Secret"

// requireSecret admits requests carrying the shared secret in X-Webhook-Secret
// or as a bearer token. An empty configured secret admits nobody.
func requireSecret(secret string, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secretMatches(secret, presentedSecret(r)) {
				authFailuresTotal.Inc()
				log.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("unauthorized request")
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedSecret(r *http.Request) string {
	if v := r.Header.Get(secretHeader); v != "" {
		return v
	}
	if v := r.Header.Get("Authorization"); len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

func secretMatches(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
