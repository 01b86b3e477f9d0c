package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BorisDmv/blog-platform/internal/ai"
	"github.com/BorisDmv/blog-platform/internal/auth"
	"github.com/BorisDmv/blog-platform/internal/config"
	"github.com/BorisDmv/blog-platform/internal/db"
	"github.com/BorisDmv/blog-platform/internal/logging"
	"github.com/BorisDmv/blog-platform/internal/middleware"
	"github.com/BorisDmv/blog-platform/internal/server"
)

const (
	dbRecheck       = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.GetLogger("main").Error("config load failed", "error", err)
		os.Exit(1)
	}

	logging.Configure(logging.Config{
		AppName: "blog-platform",
		Level:   cfg.Log.Level,
		JSON:    cfg.Log.JSON,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.GetLogger("main").Error("server failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. Every resource it opens is released
// before it returns, on success and on error.
func run(ctx context.Context, cfg config.Config) error {
	log := logging.GetLogger("main")

	store := db.NewHandle(func(ctx context.Context) (db.Store, error) {
		return db.Open(ctx, cfg.DatabaseURL, cfg.DatabaseName)
	}, dbRecheck)
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("db connect: %w", err)
	}

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := auth.NewService(store, tokens, cfg.Auth.BcryptCost)

	generator := ai.NewGeminiClient(ai.Config{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
	})
	if cfg.AI.APIKey == "" {
		log.Warn("GEMINI_API_KEY is not set, /ai/generate will answer 502")
	}

	counter, closeCounter := newCounter(ctx, cfg.Redis, log)
	defer closeCounter()
	limiter := middleware.NewRateLimiter(counter, "auth", cfg.Auth.RateLimit, cfg.Auth.RateWindow)

	router := server.NewRouter(server.Options{
		Store:       store,
		Auth:        authService,
		Generator:   generator,
		AuthLimiter: limiter,
		ClientURL:   cfg.ClientURL,
		Production:  cfg.IsProduction(),
		TrustProxy:  cfg.TrustProxy,
	})

	// Generation requests may legitimately outlive the default write timeout.
	writeTimeout := 15 * time.Second
	if t := cfg.AI.Timeout + 5*time.Second; t > writeTimeout {
		writeTimeout = t
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     logging.StdLogger(logging.GetLogger("http.server"), logging.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newCounter picks the rate limit backend. Redis is used when configured and
// reachable, otherwise counts are kept in process memory.
func newCounter(ctx context.Context, cfg config.RedisConfig, log logging.Logger) (middleware.Counter, func()) {
	if cfg.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		err := rdb.Ping(pingCtx).Err()
		if err == nil {
			log.Info("rate limiting via redis", "addr", cfg.Addr)
			return middleware.NewRedisCounter(rdb, "blog:ratelimit:"), func() { _ = rdb.Close() }
		}
		log.Warn("redis unavailable, rate limiting in memory", "addr", cfg.Addr, "error", err)
		_ = rdb.Close()
	}

	mem := middleware.NewMemoryCounter(time.Minute)
	return mem, func() { _ = mem.Close() }
}
