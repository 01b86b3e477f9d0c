package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BorisDmv/blog-platform/internal/auth"
	"github.com/BorisDmv/blog-platform/internal/db"
	"github.com/BorisDmv/blog-platform/internal/middleware"
	"github.com/BorisDmv/blog-platform/internal/models"
	"github.com/BorisDmv/blog-platform/internal/server"
)

const clientOrigin = "http://localhost:5173"

type echoGenerator struct {
	err error
}

func (g echoGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "generated: " + prompt, nil
}

type testApp struct {
	t     *testing.T
	srv   *httptest.Server
	store *db.MemoryStore
}

func newTestApp(t *testing.T, opts ...func(*server.Options)) *testApp {
	t.Helper()

	store := db.NewMemoryStore()
	options := server.Options{
		Store:     store,
		Auth:      auth.NewService(store, auth.NewTokens("test-secret", time.Hour), bcrypt.MinCost),
		Generator: echoGenerator{},
		ClientURL: clientOrigin,
	}
	for _, opt := range opts {
		opt(&options)
	}

	srv := httptest.NewServer(server.NewRouter(options))
	t.Cleanup(srv.Close)

	return &testApp{t: t, srv: srv, store: store}
}

func (a *testApp) do(method, path, token string, body any) (*http.Response, []byte) {
	a.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		a.t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func (a *testApp) register(username string) models.AuthResponse {
	a.t.Helper()

	resp, body := a.do(http.MethodPost, "/api/v1/users/register", "", models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password-" + username,
	})
	if resp.StatusCode != http.StatusCreated {
		a.t.Fatalf("register %s: status %d: %s", username, resp.StatusCode, body)
	}

	assertNoCredentials(a.t, body)

	var out models.AuthResponse
	decode(a.t, body, &out)
	return out
}

func (a *testApp) createPost(token, title, content string) models.Post {
	a.t.Helper()

	resp, body := a.do(http.MethodPost, "/api/v1/posts", token, models.CreatePostRequest{Title: title, Content: content})
	if resp.StatusCode != http.StatusCreated {
		a.t.Fatalf("create post: status %d: %s", resp.StatusCode, body)
	}

	var post models.Post
	decode(a.t, body, &post)
	return post
}

func decode(t *testing.T, body []byte, dst any) {
	t.Helper()

	if err := json.Unmarshal(body, dst); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)

	registered := app.register("alice")
	if registered.Token == "" || registered.User.Username != "alice" {
		t.Fatalf("register response = %+v", registered)
	}

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"by email", models.LoginRequest{Email: "alice@example.com", Password: "password-alice"}, http.StatusOK},
		{"by username", models.LoginRequest{Username: "alice", Password: "password-alice"}, http.StatusOK},
		{"wrong password", models.LoginRequest{Email: "alice@example.com", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", models.LoginRequest{Username: "bob", Password: "password-alice"}, http.StatusUnauthorized},
		{"missing fields", models.LoginRequest{}, http.StatusBadRequest},
		{"invalid json", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := app.do(http.MethodPost, "/api/v1/users/login", "", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, body)
			}
			assertNoCredentials(t, body)
		})
	}
}

// assertNoCredentials fails when a response body exposes a password or its
// hash under any key.
func assertNoCredentials(t *testing.T, body []byte) {
	t.Helper()

	if strings.Contains(string(body), "$2a$") || strings.Contains(string(body), "$2b$") {
		t.Errorf("response contains a bcrypt hash: %s", body)
	}

	var doc map[string]any
	decode(t, body, &doc)
	var walk func(v any)
	walk = func(v any) {
		switch v := v.(type) {
		case map[string]any:
			for k, child := range v {
				if k == "password" || k == "password_hash" || k == "PasswordHash" {
					t.Errorf("response has %q key: %s", k, body)
				}
				walk(child)
			}
		case []any:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(doc)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)
	app.register("alice")

	tests := []struct {
		name string
		body any
	}{
		{"missing password", models.RegisterRequest{Username: "bob", Email: "bob@example.com"}},
		{"taken username", models.RegisterRequest{Username: "alice", Email: "x@example.com", Password: "pw"}},
		{"taken email", models.RegisterRequest{Username: "carol", Email: "alice@example.com", Password: "pw"}},
		{"empty body", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := app.do(http.MethodPost, "/api/v1/users/register", "", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", resp.StatusCode, body)
			}
		})
	}
}

func TestPostRoundTrip(t *testing.T) {
	app := newTestApp(t)
	alice := app.register("alice")

	created := app.createPost(alice.Token, "Hello World", "First post\nwith two lines")
	if created.Owner != alice.User.ID || created.Author != "alice" {
		t.Errorf("created post owner = %q author = %q", created.Owner, created.Author)
	}
	if !strings.HasPrefix(created.Slug, "hello-world-") {
		t.Errorf("slug = %q, want hello-world- prefix", created.Slug)
	}

	resp, body := app.do(http.MethodGet, "/api/v1/posts/"+created.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get post: status %d", resp.StatusCode)
	}

	var got models.Post
	decode(t, body, &got)
	if got.Title != "Hello World" || got.Content != "First post\nwith two lines" {
		t.Errorf("round trip = %q / %q", got.Title, got.Content)
	}

	resp, body = app.do(http.MethodGet, "/api/v1/posts/slug/"+created.Slug, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get by slug: status %d", resp.StatusCode)
	}
	decode(t, body, &got)
	if got.ID != created.ID {
		t.Errorf("get by slug id = %q, want %q", got.ID, created.ID)
	}
}

func TestGetMissingPost(t *testing.T) {
	app := newTestApp(t)

	for _, id := range []string{"7f1d2c44-9a57-4e0e-bf5f-0a5e6a3c2d11", "not-a-uuid"} {
		resp, body := app.do(http.MethodGet, "/api/v1/posts/"+id, "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want 404", id, resp.StatusCode)
		}

		var errBody map[string]any
		decode(t, body, &errBody)
		if _, hasTitle := errBody["title"]; hasTitle {
			t.Errorf("404 body contains a post: %s", body)
		}
		if errBody["message"] == "" {
			t.Errorf("404 body has no message: %s", body)
		}
	}

	resp, _ := app.do(http.MethodGet, "/api/v1/posts/slug/nothing-here", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET by slug: status = %d, want 404", resp.StatusCode)
	}
}

func TestCreatePostValidation(t *testing.T) {
	app := newTestApp(t)
	alice := app.register("alice")

	tests := []struct {
		name string
		body any
	}{
		{"empty title", models.CreatePostRequest{Title: "", Content: "body"}},
		{"blank title", models.CreatePostRequest{Title: "   ", Content: "body"}},
		{"empty content", models.CreatePostRequest{Title: "title"}},
		{"invalid json", "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := app.do(http.MethodPost, "/api/v1/posts", alice.Token, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", resp.StatusCode, body)
			}
		})
	}

	posts, _ := app.store.ListPosts(context.Background())
	if len(posts) != 0 {
		t.Errorf("%d posts stored after rejected creates, want 0", len(posts))
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)
	alice := app.register("alice")
	post := app.createPost(alice.Token, "title", "content")

	expired, err := auth.NewTokens("test-secret", -time.Minute).Issue(&models.User{ID: alice.User.ID, Username: "alice"})
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}
	forged, err := auth.NewTokens("other-secret", time.Hour).Issue(&models.User{ID: alice.User.ID, Username: "alice"})
	if err != nil {
		t.Fatalf("issue forged token: %v", err)
	}
	ghost, err := auth.NewTokens("test-secret", time.Hour).Issue(&models.User{ID: "3b9f4a5e-0000-4000-8000-000000000000", Username: "ghost"})
	if err != nil {
		t.Fatalf("issue ghost token: %v", err)
	}

	routes := []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/v1/posts/my", nil},
		{http.MethodPost, "/api/v1/posts", models.CreatePostRequest{Title: "t", Content: "c"}},
		{http.MethodPut, "/api/v1/posts/" + post.ID, models.CreatePostRequest{Title: "t"}},
		{http.MethodDelete, "/api/v1/posts/" + post.ID, nil},
		{http.MethodPost, "/api/v1/ai/generate", models.GenerateRequest{Prompt: "p"}},
	}

	for _, route := range routes {
		for name, token := range map[string]string{"missing": "", "expired": expired, "forged": forged, "unknown user": ghost} {
			resp, body := app.do(route.method, route.path, token, route.body)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("%s %s with %s token: status = %d, want 401", route.method, route.path, name, resp.StatusCode)
			}
			if string(body) != "{\"message\":\"Not authorized\"}\n" {
				t.Errorf("%s %s with %s token: body = %s", route.method, route.path, name, body)
			}
		}
	}

	stored, _ := app.store.GetPostByID(context.Background(), post.ID)
	if stored == nil || stored.Title != "title" {
		t.Errorf("post changed by unauthenticated requests: %+v", stored)
	}
}

func TestUpdateByNonOwnerIsForbidden(t *testing.T) {
	app := newTestApp(t)
	alice := app.register("alice")
	bob := app.register("bob")
	post := app.createPost(alice.Token, "Original", "content")

	resp, body := app.do(http.MethodPut, "/api/v1/posts/"+post.ID, bob.Token, models.CreatePostRequest{Title: "Hijacked"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("update as non-owner: status = %d, want 403: %s", resp.StatusCode, body)
	}

	resp, _ = app.do(http.MethodDelete, "/api/v1/posts/"+post.ID, bob.Token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("delete as non-owner: status = %d, want 403", resp.StatusCode)
	}

	resp, body = app.do(http.MethodGet, "/api/v1/posts/"+post.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get post: status = %d", resp.StatusCode)
	}
	var got models.Post
	decode(t, body, &got)
	if got.Title != "Original" || got.Owner != alice.User.ID {
		t.Errorf("post after forbidden requests = %+v", got)
	}
}

func TestUpdateChecksPostBeforeBody(t *testing.T) {
	app := newTestApp(t)
	alice := app.register("alice")
	bob := app.register("bob")
	post := app.createPost(alice.Token, "Original", "content")

	tests := []struct {
		name       string
		token      string
		id         string
		body       any
		wantStatus int
	}{
		{"non-owner empty body", bob.Token, post.ID, "", http.StatusForbidden},
		{"non-owner malformed body", bob.Token, post.ID, "{", http.StatusForbidden},
		{"non-owner blank title", bob.Token, post.ID, `{"title":"  "}`, http.StatusForbidden},
		{"missing id empty body", alice.Token, "0b5e8f0e-1111-4222-8333-444455556666", "", http.StatusNotFound},
		{"owner empty body", alice.Token, post.ID, "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := app.do(http.MethodPut, "/api/v1/posts/"+tt.id, tt.token, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}

	stored, _ := app.store.GetPostByID(context.Background(), post.ID)
	if stored == nil || stored.Title != "Original" {
		t.Errorf("post changed: %+v", stored)
	}
}

func TestUpdateByOwner(t *testing.T) {
	app := newTestApp(t)
	alice := app.register("alice")
	bob := app.register("bob")
	post := app.createPost(alice.Token, "Original", "original content")

	body := fmt.Sprintf(`{"title":"Renamed","owner":%q,"author":"bob","slug":"x","created_at":"2001-01-01T00:00:00Z"}`, bob.User.ID)
	resp, raw := app.do(http.MethodPut, "/api/v1/posts/"+post.ID, alice.Token, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status = %d: %s", resp.StatusCode, raw)
	}

	var updated models.Post
	decode(t, raw, &updated)
	if updated.Title != "Renamed" || updated.Content != "original content" {
		t.Errorf("partial merge = %q / %q", updated.Title, updated.Content)
	}
	if updated.Owner != alice.User.ID || updated.Author != "alice" || updated.Slug != post.Slug {
		t.Errorf("immutable fields changed: %+v", updated)
	}
	if !updated.CreatedAt.Equal(post.CreatedAt) || updated.UpdatedAt.Before(post.UpdatedAt) {
		t.Errorf("timestamps = %v / %v", updated.CreatedAt, updated.UpdatedAt)
	}

	resp, _ = app.do(http.MethodPut, "/api/v1/posts/"+post.ID, alice.Token, `{"content":"  "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("update with blank content: status = %d, want 400", resp.StatusCode)
	}
}

func TestDeletePost(t *testing.T) {
	app := newTestApp(t)
	alice := app.register("alice")
	post := app.createPost(alice.Token, "Doomed", "content")

	resp, body := app.do(http.MethodDelete, "/api/v1/posts/"+post.ID, alice.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status = %d: %s", resp.StatusCode, body)
	}
	var out models.DeletePostResponse
	decode(t, body, &out)
	if out.ID != post.ID {
		t.Errorf("delete response id = %q, want %q", out.ID, post.ID)
	}

	for _, id := range []string{post.ID, "00000000-0000-4000-8000-000000000000"} {
		resp, _ = app.do(http.MethodDelete, "/api/v1/posts/"+id, alice.Token, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("delete %s: status = %d, want 404", id, resp.StatusCode)
		}
	}
}

func TestListPosts(t *testing.T) {
	app := newTestApp(t)
	alice := app.register("alice")
	bob := app.register("bob")

	first := app.createPost(alice.Token, "first", "a")
	time.Sleep(2 * time.Millisecond)
	second := app.createPost(bob.Token, "second", "b")
	time.Sleep(2 * time.Millisecond)
	third := app.createPost(alice.Token, "third", "c")

	resp, body := app.do(http.MethodGet, "/api/v1/posts", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status = %d", resp.StatusCode)
	}
	var all []models.Post
	decode(t, body, &all)
	if len(all) != 3 || all[0].ID != third.ID || all[1].ID != second.ID || all[2].ID != first.ID {
		t.Errorf("list order = %+v", all)
	}

	resp, body = app.do(http.MethodGet, "/api/v1/posts/my", alice.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("my posts: status = %d", resp.StatusCode)
	}
	var mine []models.Post
	decode(t, body, &mine)
	if len(mine) != 2 || mine[0].ID != third.ID || mine[1].ID != first.ID {
		t.Errorf("my posts = %+v", mine)
	}
}

func TestEmptyListIsArray(t *testing.T) {
	app := newTestApp(t)

	_, body := app.do(http.MethodGet, "/api/v1/posts", "", nil)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty list body = %s, want []", body)
	}
}

func TestGenerate(t *testing.T) {
	app := newTestApp(t)
	alice := app.register("alice")

	resp, body := app.do(http.MethodPost, "/api/v1/ai/generate", alice.Token, models.GenerateRequest{Prompt: "a story"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate: status = %d: %s", resp.StatusCode, body)
	}
	var out models.GenerateResponse
	decode(t, body, &out)
	if out.Text != "generated: a story" {
		t.Errorf("text = %q", out.Text)
	}

	resp, _ = app.do(http.MethodPost, "/api/v1/ai/generate", alice.Token, models.GenerateRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty prompt: status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateUpstreamFailure(t *testing.T) {
	for _, production := range []bool{false, true} {
		app := newTestApp(t, func(o *server.Options) {
			o.Generator = echoGenerator{err: fmt.Errorf("%w: gemini returned 503", models.ErrUpstream)}
			o.Production = production
		})
		alice := app.register("alice")

		resp, body := app.do(http.MethodPost, "/api/v1/ai/generate", alice.Token, models.GenerateRequest{Prompt: "p"})
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
		var errBody models.ErrorResponse
		decode(t, body, &errBody)
		if (errBody.Error != "") == production {
			t.Errorf("production=%v: error detail = %q", production, errBody.Error)
		}
	}
}

func TestAuthRateLimit(t *testing.T) {
	counter := middleware.NewMemoryCounter(time.Minute)
	defer counter.Close()

	app := newTestApp(t, func(o *server.Options) {
		o.AuthLimiter = middleware.NewRateLimiter(counter, "auth", 2, time.Minute)
	})

	login := models.LoginRequest{Username: "nobody", Password: "pw"}
	for i := range 2 {
		resp, _ := app.do(http.MethodPost, "/api/v1/users/login", "", login)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, resp.StatusCode)
		}
	}

	resp, _ := app.do(http.MethodPost, "/api/v1/users/login", "", login)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("over limit: status = %d, want 429", resp.StatusCode)
	}

	resp, _ = app.do(http.MethodGet, "/api/v1/posts", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("posts are not rate limited: status = %d", resp.StatusCode)
	}
}

func TestAuthRateLimitForwardedHeaders(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		wantStatus int
	}{
		{"headers ignored without a trusted proxy", false, http.StatusTooManyRequests},
		{"headers honoured behind a trusted proxy", true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := middleware.NewMemoryCounter(time.Minute)
			defer counter.Close()

			app := newTestApp(t, func(o *server.Options) {
				o.AuthLimiter = middleware.NewRateLimiter(counter, "auth", 2, time.Minute)
				o.TrustProxy = tt.trustProxy
			})

			var status int
			for i := range 3 {
				raw, _ := json.Marshal(models.LoginRequest{Username: "nobody", Password: "pw"})
				req, _ := http.NewRequest(http.MethodPost, app.srv.URL+"/api/v1/users/login", bytes.NewReader(raw))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))

				resp, err := app.srv.Client().Do(req)
				if err != nil {
					t.Fatalf("login: %v", err)
				}
				resp.Body.Close()
				status = resp.StatusCode
			}

			if status != tt.wantStatus {
				t.Errorf("third attempt: status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	app := newTestApp(t)

	for origin, wantAllowed := range map[string]bool{clientOrigin: true, "https://evil.example.com": false} {
		req, _ := http.NewRequest(http.MethodOptions, app.srv.URL+"/api/v1/posts", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")

		resp, err := app.srv.Client().Do(req)
		if err != nil {
			t.Fatalf("preflight: %v", err)
		}
		resp.Body.Close()

		gotOrigin := resp.Header.Get("Access-Control-Allow-Origin")
		if wantAllowed {
			if gotOrigin != clientOrigin || resp.Header.Get("Access-Control-Allow-Credentials") != "true" {
				t.Errorf("origin %s: allow-origin = %q, credentials = %q", origin, gotOrigin,
					resp.Header.Get("Access-Control-Allow-Credentials"))
			}
		} else if gotOrigin != "" {
			t.Errorf("origin %s: allow-origin = %q, want none", origin, gotOrigin)
		}
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	resp, _ := app.do(http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: status = %d, want 200", resp.StatusCode)
	}

	app.store.Close()

	resp, _ = app.do(http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("health after close: status = %d, want 503", resp.StatusCode)
	}
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)

	resp, body := app.do(http.MethodGet, "/api/v1/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	var errBody models.ErrorResponse
	decode(t, body, &errBody)
	if errBody.Message == "" {
		t.Errorf("404 body = %s", body)
	}
}
