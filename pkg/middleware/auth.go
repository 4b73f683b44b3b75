package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type claimsKey struct{}

var (
	ErrMissingToken = errors.New("unauthorized: missing token")
	ErrInvalidToken = errors.New("unauthorized: invalid token")
)

// BearerAuth requires an HS256 token signed with secret in the Authorization
// header. Verified claims are stored on the request context.
func BearerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ParseBearer(r.Header.Get("Authorization"), secret)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="zenoscript"`)
				WriteJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"success": false,
					"error":   map[string]interface{}{"kind": "unauthorized", "message": err.Error()},
				})
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseBearer validates an "Authorization: Bearer <token>" header value.
func ParseBearer(header string, secret []byte) (jwt.MapClaims, error) {
	if header == "" {
		return nil, ErrMissingToken
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.Parse(strings.TrimSpace(raw), func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Claims returns the verified token claims, if the request went through BearerAuth.
func Claims(ctx context.Context) (jwt.MapClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(jwt.MapClaims)
	return c, ok
}
