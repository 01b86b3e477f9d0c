// Package client is a typed HTTP client for the blog API. It keeps the
// signed-in identity in a session.State and refuses protected calls while
// logged out.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BorisDmv/blog-platform/internal/models"
	"github.com/BorisDmv/blog-platform/internal/session"
)

const maxErrorBody = 64 << 10

// ErrNotLoggedIn is returned before any request is made when a protected
// call is attempted without a session.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL string
	http    *http.Client
	session *session.State
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a client for the API rooted at baseURL, for example
// http://localhost:8080/api/v1. A nil state starts logged out.
func New(baseURL string, state *session.State, opts ...Option) *Client {
	if state == nil {
		state = session.New()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		session: state,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *session.State {
	return c.session
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*models.PublicUser, error) {
	var out models.AuthResponse
	req := models.RegisterRequest{Username: username, Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/users/register", false, req, &out); err != nil {
		return nil, err
	}
	c.session.SignIn(out.User, out.Token)
	return &out.User, nil
}

// Login signs in by email when login contains "@", otherwise by username.
func (c *Client) Login(ctx context.Context, login, password string) (*models.PublicUser, error) {
	req := models.LoginRequest{Password: password}
	if strings.Contains(login, "@") {
		req.Email = login
	} else {
		req.Username = login
	}

	var out models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/users/login", false, req, &out); err != nil {
		return nil, err
	}
	c.session.SignIn(out.User, out.Token)
	return &out.User, nil
}

// Logout only clears local state; tokens are not revoked server-side.
func (c *Client) Logout() {
	c.session.SignOut()
}

func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	var out []models.Post
	if err := c.do(ctx, http.MethodGet, "/posts", false, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var out models.Post
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), false, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var out models.Post
	if err := c.do(ctx, http.MethodGet, "/posts/slug/"+url.PathEscape(slug), false, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyPosts(ctx context.Context) ([]models.Post, error) {
	var out []models.Post
	if err := c.do(ctx, http.MethodGet, "/posts/my", true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePost(ctx context.Context, title, content string) (*models.Post, error) {
	var out models.Post
	req := models.CreatePostRequest{Title: title, Content: content}
	if err := c.do(ctx, http.MethodPost, "/posts", true, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePost sends a partial update; nil fields are left unchanged.
func (c *Client) UpdatePost(ctx context.Context, id string, title, content *string) (*models.Post, error) {
	var out models.Post
	req := models.UpdatePostRequest{Title: title, Content: content}
	if err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), true, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), true, nil, nil)
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var out models.GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/ai/generate", true, models.GenerateRequest{Prompt: prompt}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) do(ctx context.Context, method, path string, protected bool, body, dst interface{}) error {
	token := c.session.Token()
	if protected && token == "" {
		return ErrNotLoggedIn
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if protected {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody models.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &errBody) == nil {
			apiErr.Message = errBody.Message
		}
		if protected && resp.StatusCode == http.StatusUnauthorized {
			c.session.SignOut()
		}
		return apiErr
	}

	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
