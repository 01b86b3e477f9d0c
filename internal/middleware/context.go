package middleware

import (
	"context"

	"github.com/BorisDmv/blog-platform/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, user *models.PublicUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the user attached by Auth.
func UserFromContext(ctx context.Context) (*models.PublicUser, bool) {
	user, ok := ctx.Value(userContextKey).(*models.PublicUser)
	return user, ok && user != nil
}
