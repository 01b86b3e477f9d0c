package handlers

import (
	"context"
	"net/http"

	"github.com/BorisDmv/blog-platform/internal/logging"
	"github.com/BorisDmv/blog-platform/internal/respond"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store answers.
func Health(store Pinger, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "error", err)
			respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
