// Package server assembles the HTTP application: global middleware,
// routes and handlers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/BorisDmv/blog-platform/internal/ai"
	"github.com/BorisDmv/blog-platform/internal/auth"
	"github.com/BorisDmv/blog-platform/internal/db"
	"github.com/BorisDmv/blog-platform/internal/handlers"
	"github.com/BorisDmv/blog-platform/internal/logging"
	"github.com/BorisDmv/blog-platform/internal/middleware"
	"github.com/BorisDmv/blog-platform/internal/respond"
)

const APIPrefix = "/api/v1"

type Options struct {
	Store       db.Store
	Auth        *auth.Service
	Generator   ai.Generator
	AuthLimiter *middleware.RateLimiter // optional
	ClientURL   string
	Production  bool
	// TrustProxy honours X-Real-IP / X-Forwarded-For. Enable only behind a
	// reverse proxy that sets them, since rate limits key on the client IP.
	TrustProxy bool
}

func NewRouter(opts Options) http.Handler {
	log := logging.GetLogger("server")
	errs := respond.Errors{Production: opts.Production, Log: log}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(logging.GetLogger("http")))
	r.Use(middleware.Recoverer(errs, log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{opts.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Message(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Message(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", handlers.Health(opts.Store, log))

	users := handlers.NewUsersHandler(opts.Auth, errs)
	posts := handlers.NewPostsHandler(opts.Store, errs)
	gen := handlers.NewAIHandler(opts.Generator, errs)
	protect := middleware.Auth(opts.Auth, errs, logging.GetLogger("middleware.auth"))

	r.Route(APIPrefix, func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			if opts.AuthLimiter != nil {
				r.Use(opts.AuthLimiter.Limit)
			}
			r.Post("/register", users.Register)
			r.Post("/login", users.Login)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", posts.List)
			r.Get("/slug/{slug}", posts.GetBySlug)
			r.Get("/{id}", posts.Get)

			r.Group(func(r chi.Router) {
				r.Use(protect)
				r.Get("/my", posts.Mine)
				r.Post("/", posts.Create)
				r.Put("/{id}", posts.Update)
				r.Delete("/{id}", posts.Delete)
			})
		})

		r.With(protect).Post("/ai/generate", gen.Generate)
	})

	return r
}
