package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/BorisDmv/blog-platform/internal/logging"
	"github.com/BorisDmv/blog-platform/internal/respond"
)

// Recoverer turns handler panics into a JSON 500. The panic value and stack
// are only sent to the client outside production.
func Recoverer(errs respond.Errors, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				stack := string(debug.Stack())
				log.ErrorContext(r.Context(), "request panic",
					"panic", p,
					"stack", stack,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", chimw.GetReqID(r.Context()),
				)
				errs.Detailed(w, http.StatusInternalServerError, "Internal server error",
					fmt.Sprintf("%v\n%s", p, stack))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
