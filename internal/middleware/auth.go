package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type callerKey struct{}

// caller is installed by RequestLogger so the access log can name who made a
// request authenticated further down the chain.
type caller struct {
	subject string
}

func withCaller(ctx context.Context) (context.Context, *caller) {
	c := &caller{}
	return context.WithValue(ctx, callerKey{}, c), c
}

func recordSubject(ctx context.Context, subject string) {
	if c, ok := ctx.Value(callerKey{}).(*caller); ok {
		c.subject = subject
	}
}

// Auth returns a handler that requires a Bearer credential before delegating
// to next. The credential is accepted when it equals token (if token is set)
// or is an HS256 JWT signed with secret (if secret is set). Responds with 401
// otherwise.
func Auth(token string, secret []byte, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
			return
		}
		credential := strings.TrimPrefix(authHeader, "Bearer ")

		if token != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(token)) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		if len(secret) > 0 {
			if sub, err := parseJWT(credential, secret); err == nil {
				recordSubject(r.Context(), sub)
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
	})
}

// parseJWT validates an HS256 token and returns its subject.
func parseJWT(tokenString string, secret []byte) (string, error) {
	if tokenString == "" {
		return "", errors.New("empty token")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}
