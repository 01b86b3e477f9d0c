package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/BorisDmv/blog-platform/internal/auth"
	"github.com/BorisDmv/blog-platform/internal/logging"
	"github.com/BorisDmv/blog-platform/internal/models"
	"github.com/BorisDmv/blog-platform/internal/respond"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.PublicUser, error)
}

// Auth admits requests carrying a valid bearer token for an existing user
// and attaches that user to the request context. Every rejection is the
// same 401; the reason is only logged.
func Auth(authn Authenticator, errs respond.Errors, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authn.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				if errors.Is(err, models.ErrUnauthorized) {
					log.WarnContext(r.Context(), "request rejected",
						"reason", auth.Reason(err),
						"path", r.URL.Path,
						"request_id", chimw.GetReqID(r.Context()),
					)
				}
				errs.Write(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}
