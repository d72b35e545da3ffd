package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// TokenCookie is the name of the HttpOnly session cookie.
const TokenCookie = "token"

// ErrNoToken means the request carried no session token at all.
var ErrNoToken = errors.New("auth: no token")

// contextKey is unexported so no other package can collide with our keys.
type contextKey string

const userIDKey contextKey = "userID"

// Authenticate extracts and validates the session token of r. Sources are
// tried in order: the token cookie, an Authorization: Bearer header, then the
// token query parameter.
func (s *TokenService) Authenticate(r *http.Request) (int64, error) {
	tok := tokenFromRequest(r)
	if tok == "" {
		return 0, ErrNoToken
	}
	return s.Validate(tok)
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return r.URL.Query().Get("token")
}

// RequireAuth rejects requests without a valid token with 401 and stores the
// authenticated user id in the request context otherwise.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := tokens.Authenticate(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the id stored by RequireAuth.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}
