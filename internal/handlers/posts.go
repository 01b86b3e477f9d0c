package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/BorisDmv/blog-platform/internal/middleware"
	"github.com/BorisDmv/blog-platform/internal/models"
	"github.com/BorisDmv/blog-platform/internal/respond"
)

const maxSlugBase = 80

// PostStore is the part of db.Store the posts handler needs.
type PostStore interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	ListPostsByOwner(ctx context.Context, owner string) ([]models.Post, error)
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*models.Post, error)
	CreatePost(ctx context.Context, post models.Post) (*models.Post, error)
	UpdatePost(ctx context.Context, post models.Post) (*models.Post, error)
	DeletePost(ctx context.Context, id string) (bool, error)
}

type PostsHandler struct {
	store PostStore
	errs  respond.Errors
	now   func() time.Time
}

func NewPostsHandler(store PostStore, errs respond.Errors) *PostsHandler {
	return &PostsHandler{store: store, errs: errs, now: time.Now}
}

var errPostNotFound = fmt.Errorf("%w: post not found", models.ErrNotFound)

// List returns every post, newest first.
func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.ListPosts(r.Context())
	if err != nil {
		h.errs.Internal(w, r, fmt.Errorf("list posts: %w", err))
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(posts))
}

// Mine returns the caller's posts, newest first.
func (h *PostsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, models.ErrUnauthorized)
		return
	}

	posts, err := h.store.ListPostsByOwner(r.Context(), user.ID)
	if err != nil {
		h.errs.Internal(w, r, fmt.Errorf("list posts by owner: %w", err))
		return
	}
	respond.JSON(w, http.StatusOK, nonNil(posts))
}

func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.load(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, post)
}

func (h *PostsHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	post, err := h.store.GetPostBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errs.Internal(w, r, fmt.Errorf("get post by slug: %w", err))
		return
	}
	if post == nil {
		h.errs.Write(w, r, errPostNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, post)
}

func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.errs.Write(w, r, models.ErrUnauthorized)
		return
	}

	var req models.CreatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" || strings.TrimSpace(req.Content) == "" {
		h.errs.Write(w, r, fmt.Errorf("%w: title and content are required", models.ErrValidation))
		return
	}

	id := uuid.NewString()
	now := h.now().UTC()

	created, err := h.store.CreatePost(r.Context(), models.Post{
		ID:        id,
		Title:     title,
		Content:   req.Content,
		Slug:      makeSlug(title, id),
		Owner:     user.ID,
		Author:    user.Username,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		h.errs.Internal(w, r, fmt.Errorf("create post: %w", err))
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

// Update applies a partial update. Existence and ownership are checked
// before the body is read. Owner, author, slug and created_at are never
// taken from the request.
func (h *PostsHandler) Update(w http.ResponseWriter, r *http.Request) {
	post, err := h.loadOwned(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	var req models.UpdatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			h.errs.Write(w, r, fmt.Errorf("%w: title cannot be empty", models.ErrValidation))
			return
		}
		post.Title = title
	}
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			h.errs.Write(w, r, fmt.Errorf("%w: content cannot be empty", models.ErrValidation))
			return
		}
		post.Content = *req.Content
	}
	post.UpdatedAt = h.now().UTC()

	updated, err := h.store.UpdatePost(r.Context(), *post)
	if err != nil {
		h.errs.Internal(w, r, fmt.Errorf("update post: %w", err))
		return
	}
	if updated == nil {
		h.errs.Write(w, r, errPostNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	post, err := h.loadOwned(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	deleted, err := h.store.DeletePost(r.Context(), post.ID)
	if err != nil {
		h.errs.Internal(w, r, fmt.Errorf("delete post: %w", err))
		return
	}
	if !deleted {
		h.errs.Write(w, r, errPostNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, models.DeletePostResponse{ID: post.ID, Message: "Post removed"})
}

// load fetches the post named by the {id} URL parameter. Ids that are not
// UUIDs cannot exist and are reported as not found.
func (h *PostsHandler) load(r *http.Request) (*models.Post, error) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		return nil, errPostNotFound
	}

	post, err := h.store.GetPostByID(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	if post == nil {
		return nil, errPostNotFound
	}
	return post, nil
}

// loadOwned is load plus the ownership check shared by update and delete.
func (h *PostsHandler) loadOwned(r *http.Request) (*models.Post, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, models.ErrUnauthorized
	}

	post, err := h.load(r)
	if err != nil {
		return nil, err
	}
	if !post.OwnedBy(user.ID) {
		return nil, fmt.Errorf("%w: not the owner of this post", models.ErrForbidden)
	}
	return post, nil
}

// makeSlug derives a permalink from the title; the id prefix keeps it unique.
func makeSlug(title, id string) string {
	base := slug.Make(title)
	if len(base) > maxSlugBase {
		base = strings.Trim(base[:maxSlugBase], "-")
	}
	if base == "" {
		base = "post"
	}
	return base + "-" + strings.SplitN(id, "-", 2)[0]
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil(posts []models.Post) []models.Post {
	if posts == nil {
		return []models.Post{}
	}
	return posts
}
