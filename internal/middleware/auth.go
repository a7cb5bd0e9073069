package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/agrinet-collective/agrinet/internal/auth"
)

// authErrorBody is the standard error envelope, written here directly
// because the api package sits above the middleware package.
const (
	authMissingBody = `{"error":{"code":"auth_failed","message":"Missing or malformed Authorization header"}}`
	authExpiredBody = `{"error":{"code":"auth_failed","message":"Token has expired"}}`
	authInvalidBody = `{"error":{"code":"auth_failed","message":"Invalid token"}}`
)

// TokenValidator validates a bearer token and returns its claims.
// *auth.JWTService satisfies this.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// Auth returns middleware that requires a valid bearer access token.
// On success the subject claim is stored in the request context as the
// user ID; handlers read it via GetUserID. Refresh tokens are rejected:
// they are only good for minting new access tokens.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, r, authMissingBody)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					writeAuthError(w, r, authExpiredBody)
					return
				}
				writeAuthError(w, r, authInvalidBody)
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, authInvalidBody)
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme comparison is case-insensitive per RFC 9110.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func writeAuthError(w http.ResponseWriter, r *http.Request, body string) {
	ctx := SetErrorCode(r.Context(), "auth_failed")
	UpdateResponseContext(w, ctx)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(body))
}
