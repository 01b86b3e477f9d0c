package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BorisDmv/blog-platform/internal/logging"
	"github.com/BorisDmv/blog-platform/internal/respond"
)

// Counter counts hits per key inside a fixed window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter rejects clients that exceed limit requests per window.
// Counter errors let the request through.
type RateLimiter struct {
	counter Counter
	name    string
	limit   int
	window  time.Duration
	log     logging.Logger
}

func NewRateLimiter(counter Counter, name string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		name:    name,
		limit:   limit,
		window:  window,
		log:     logging.GetLogger("middleware.ratelimit"),
	}
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.name + ":" + clientIP(r)

		count, err := rl.counter.Incr(r.Context(), key, rl.window)
		if err != nil {
			rl.log.ErrorContext(r.Context(), "rate limit counter failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(rl.limit) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			respond.Message(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP uses RemoteAddr. The router only installs chi's RealIP, which
// rewrites RemoteAddr from X-Real-IP / X-Forwarded-For, when TRUST_PROXY is
// set; otherwise those headers are client-controlled and ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryCounter is a per-process Counter.
type MemoryCounter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	windowStart time.Time
	window      time.Duration
	count       int64
}

// NewMemoryCounter starts a goroutine that drops expired entries every
// cleanup interval until Close is called.
func NewMemoryCounter(cleanup time.Duration) *MemoryCounter {
	c := &MemoryCounter{
		visitors: make(map[string]*visitor),
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(cleanup)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.cleanup()
			case <-c.stop:
				return
			}
		}
	}()

	return c
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	v, exists := c.visitors[key]
	if !exists || now.Sub(v.windowStart) >= window {
		v = &visitor{windowStart: now, window: window}
		c.visitors[key] = v
	}
	v.count++

	return v.count, nil
}

func (c *MemoryCounter) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, v := range c.visitors {
		if now.Sub(v.windowStart) >= v.window {
			delete(c.visitors, key)
		}
	}
}

func (c *MemoryCounter) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// RedisCounter shares counts between instances through Redis.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCounter(rdb *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

// Incr increments the counter and sets its expiry in one transaction.
// ExpireNX only applies to keys without a TTL, so the window is not extended
// by later hits and a key left without one is repaired on the next hit.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = c.prefix + key

	var incr *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}

	return incr.Val(), nil
}
