package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BorisDmv/blog-platform/internal/logging"
	"github.com/BorisDmv/blog-platform/internal/models"
)

// Opener creates a new store connection.
type Opener func(ctx context.Context) (Store, error)

// Handle is the process-wide database handle. The connection is opened on
// first use and reused while it still answers pings; a connection found
// closed is reopened on the next call. Pings are throttled to one per
// recheck interval.
type Handle struct {
	open    Opener
	recheck time.Duration
	log     logging.Logger

	mu        sync.Mutex
	store     Store
	checkedAt time.Time
	now       func() time.Time
}

var _ Store = (*Handle)(nil)

func NewHandle(open Opener, recheck time.Duration) *Handle {
	return &Handle{
		open:    open,
		recheck: recheck,
		log:     logging.GetLogger("db.handle"),
		now:     time.Now,
	}
}

// Get returns the live store, opening or reopening it when needed.
func (h *Handle) Get(ctx context.Context) (Store, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store != nil {
		if h.now().Sub(h.checkedAt) < h.recheck {
			return h.store, nil
		}
		err := h.store.Ping(ctx)
		if err == nil {
			h.checkedAt = h.now()
			return h.store, nil
		}

		h.log.WarnContext(ctx, "store connection lost, reconnecting", "error", err)
		_ = h.store.Close()
		h.store = nil
	}

	store, err := h.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	h.log.InfoContext(ctx, "store connected")
	h.store = store
	h.checkedAt = h.now()

	return store, nil
}

// Ping forces a liveness check, reconnecting if the store is gone. Backends
// ping on open, so a successful Get is a successful ping.
func (h *Handle) Ping(ctx context.Context) error {
	h.mu.Lock()
	h.checkedAt = time.Time{}
	h.mu.Unlock()

	_, err := h.Get(ctx)
	return err
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store == nil {
		return nil
	}
	err := h.store.Close()
	h.store = nil
	return err
}

func (h *Handle) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.CreateUser(ctx, user)
}

func (h *Handle) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.GetUserByID(ctx, id)
}

func (h *Handle) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.GetUserByUsername(ctx, username)
}

func (h *Handle) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.GetUserByEmail(ctx, email)
}

func (h *Handle) ListPosts(ctx context.Context) ([]models.Post, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.ListPosts(ctx)
}

func (h *Handle) ListPostsByOwner(ctx context.Context, owner string) ([]models.Post, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.ListPostsByOwner(ctx, owner)
}

func (h *Handle) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.GetPostByID(ctx, id)
}

func (h *Handle) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.GetPostBySlug(ctx, slug)
}

func (h *Handle) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.CreatePost(ctx, post)
}

func (h *Handle) UpdatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return store.UpdatePost(ctx, post)
}

func (h *Handle) DeletePost(ctx context.Context, id string) (bool, error) {
	store, err := h.Get(ctx)
	if err != nil {
		return false, err
	}
	return store.DeletePost(ctx, id)
}
