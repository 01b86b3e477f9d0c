package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BorisDmv/blog-platform/internal/models"
)

var ErrUnsupportedURL = errors.New("unsupported database url")

// Store persists users and posts. Lookups return (nil, nil) when the record
// does not exist; unique violations wrap models.ErrDuplicate.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// ListPosts and ListPostsByOwner return newest first.
	ListPosts(ctx context.Context) ([]models.Post, error)
	ListPostsByOwner(ctx context.Context, owner string) ([]models.Post, error)
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	CreatePost(ctx context.Context, post models.Post) (*models.Post, error)
	// UpdatePost writes title, content and updated_at only. Owner, author,
	// slug and created_at are never touched.
	UpdatePost(ctx context.Context, post models.Post) (*models.Post, error)
	DeletePost(ctx context.Context, id string) (bool, error)
}

// Open connects to the backend named by the url scheme.
func Open(ctx context.Context, databaseURL, databaseName string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "mongodb://"), strings.HasPrefix(databaseURL, "mongodb+srv://"):
		return NewMongoStore(ctx, databaseURL, databaseName)
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgresStore(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return NewSQLiteStore(ctx, sqlitePath(databaseURL))
	case databaseURL == "memory://":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, redactURL(databaseURL))
	}
}

func sqlitePath(databaseURL string) string {
	path := strings.TrimPrefix(databaseURL, "sqlite:")
	path = strings.TrimPrefix(path, "//")
	if path == "" {
		return ":memory:"
	}
	return path
}

// redactURL drops everything after the scheme so credentials never reach logs.
func redactURL(databaseURL string) string {
	if i := strings.Index(databaseURL, "://"); i >= 0 {
		return databaseURL[:i+3] + "..."
	}
	return "..."
}
