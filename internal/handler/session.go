package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const sessionCookie = "shop_session"

type sessionKey struct{}

// sessionToken returns the session token attached by withSession.
func sessionToken(ctx context.Context) string {
	token, _ := ctx.Value(sessionKey{}).(string)
	return token
}

// withSession ensures the request carries a session token, minting a new
// one and setting the cookie when absent.
func (h *Handler) withSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			if _, err := uuid.Parse(c.Value); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			token = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, token)
		next(w, r.WithContext(ctx))
	})
}
