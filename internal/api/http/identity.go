package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/trimlink/trimlink/internal/auth"
	"github.com/trimlink/trimlink/pkg/response"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const ownerIDKey contextKey = "ownerID"

const tokenCookieName = "token"

// OwnerID extracts the caller's identity injected by WithIdentity.
func OwnerID(ctx context.Context) (uuid.UUID, bool) {
	ownerID, ok := ctx.Value(ownerIDKey).(uuid.UUID)
	return ownerID, ok
}

// WithIdentity resolves the caller's owner identity from a bearer token or
// the token cookie. Requests without credentials get a fresh identity and a
// token cookie; requests with an invalid token are rejected.
func WithIdentity(tokens *auth.TokenService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				if cookie, err := r.Cookie(tokenCookieName); err == nil {
					tokenString = cookie.Value
				}
			}

			if tokenString == "" {
				signed, ownerID, err := tokens.Issue()
				if err != nil {
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, response.ServerErrorResponse)
					return
				}

				http.SetCookie(w, &http.Cookie{
					Name:     tokenCookieName,
					Value:    signed,
					Expires:  time.Now().Add(auth.DefaultTokenTTL),
					HttpOnly: true,
					Path:     "/",
				})

				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerIDKey, ownerID)))
				return
			}

			ownerID, err := tokens.Parse(tokenString)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.UnauthorizedResponse)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerIDKey, ownerID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
