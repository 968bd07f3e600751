package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const bearerPrefix = "Bearer "

// AuthToken verifies that incoming requests carry a token from the
// configured set in the Authorization header, tolerating an optional
// "Bearer " prefix. Comparison is constant-time per token to avoid timing
// side channels on the token value (the teacher's internal/security/auth.go
// pattern for API key checks).
type AuthToken struct {
	tokens [][]byte
	Log    *logrus.Entry
}

func NewAuthToken(tokens []string, log *logrus.Entry) *AuthToken {
	raw := make([][]byte, len(tokens))
	for i, t := range tokens {
		raw[i] = []byte(t)
	}
	return &AuthToken{tokens: raw, Log: log}
}

func (a *AuthToken) authorized(token string) bool {
	tb := []byte(token)
	for _, candidate := range a.tokens {
		if len(candidate) == len(tb) && subtle.ConstantTimeCompare(candidate, tb) == 1 {
			return true
		}
	}
	return false
}

func (a *AuthToken) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, bearerPrefix)

		if !a.authorized(token) {
			a.Log.WithField("authorization", auth).Warn("invalid authorization")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
