package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/BorisDmv/blog-platform/internal/logging"
)

// RequestLogger logs one line per response: info for 2xx/3xx, warn for 4xx
// and error for 5xx.
func RequestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			var level logging.Level
			switch {
			case status >= http.StatusInternalServerError:
				level = logging.LevelError
			case status >= http.StatusBadRequest:
				level = logging.LevelWarn
			default:
				level = logging.LevelInfo
			}

			log.Log(r.Context(), level, "response", slog.Group("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			))
		})
	}
}
