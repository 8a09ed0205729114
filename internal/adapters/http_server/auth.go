package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey int

const emailKey ctxKey = iota

// Identify reads an HS256 bearer token and stores its subject (the user's
// email) in the request context. Missing or invalid tokens leave the request
// anonymous; routes that need a user reject it themselves.
func Identify(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" || len(secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) { return secret, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				log.Debug().Err(err).Str("remote", remoteIP(r)).Msg("rejected bearer token")
				next.ServeHTTP(w, r)
				return
			}
			sub, err := tok.Claims.GetSubject()
			if err != nil || sub == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), emailKey, sub)))
		})
	}
}

// EmailFrom returns the authenticated email, or "" for anonymous requests.
func EmailFrom(ctx context.Context) string {
	s, _ := ctx.Value(emailKey).(string)
	return s
}
