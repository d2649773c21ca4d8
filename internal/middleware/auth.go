// Package middleware ...
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey int

const usernameKey contextKey = iota

const bearerPrefix = "Bearer "

// Auth returns a guard which verifies the identity provider's bearer token
// and puts its subject into the request context. Requests without a valid
// token get 401 before the handler runs.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, bearerPrefix) {
				writeUnauthorized(w, "authorization required")
				return
			}

			sub, err := parseSubject(secret, strings.TrimPrefix(h, bearerPrefix))
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), sub)))
		})
	}
}

// Identify is the lenient variant of Auth for public routes: it puts the
// subject into the context when a valid token is present and stays anonymous
// otherwise, never rejecting the request.
func Identify(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if strings.HasPrefix(h, bearerPrefix) {
				if sub, err := parseSubject(secret, strings.TrimPrefix(h, bearerPrefix)); err == nil {
					r = r.WithContext(WithUsername(r.Context(), sub))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseSubject(secret []byte, raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("missing subject")
	}

	return sub, nil
}

// WithUsername ...
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// Username returns the authenticated principal, empty for anonymous requests.
func Username(ctx context.Context) string {
	v, _ := ctx.Value(usernameKey).(string)
	return v
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	b, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: message})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write(b) // nolint
}
