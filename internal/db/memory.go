package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/BorisDmv/blog-platform/internal/models"
)

// MemoryStore keeps everything in process memory. Used for development
// and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]models.User
	posts  map[string]models.Post
	closed bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]models.User),
		posts: make(map[string]models.Post),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("memory store closed")
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.ID == user.ID || existing.Username == user.Username || existing.Email == user.Email {
			return nil, fmt.Errorf("create user: %w", models.ErrDuplicate)
		}
	}
	s.users[user.ID] = user

	return &user, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.ID == id }), nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username }), nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email }), nil
}

func (s *MemoryStore) findUser(match func(models.User) bool) *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return &u
		}
	}
	return nil
}

func (s *MemoryStore) ListPosts(ctx context.Context) ([]models.Post, error) {
	return s.filterPosts(func(models.Post) bool { return true }), nil
}

func (s *MemoryStore) ListPostsByOwner(ctx context.Context, owner string) ([]models.Post, error) {
	return s.filterPosts(func(p models.Post) bool { return p.Owner == owner }), nil
}

func (s *MemoryStore) filterPosts(match func(models.Post) bool) []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if match(p) {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	return posts
}

func (s *MemoryStore) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	return &post, nil
}

func (s *MemoryStore) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.posts {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.posts {
		if existing.ID == post.ID || existing.Slug == post.Slug {
			return nil, fmt.Errorf("create post: %w", models.ErrDuplicate)
		}
	}
	s.posts[post.ID] = post

	return &post, nil
}

func (s *MemoryStore) UpdatePost(ctx context.Context, post models.Post) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.posts[post.ID]
	if !ok {
		return nil, nil
	}
	stored.Title = post.Title
	stored.Content = post.Content
	stored.UpdatedAt = post.UpdatedAt
	s.posts[post.ID] = stored

	return &stored, nil
}

func (s *MemoryStore) DeletePost(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return false, nil
	}
	delete(s.posts, id)

	return true, nil
}
