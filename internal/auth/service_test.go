package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BorisDmv/blog-platform/internal/auth"
	"github.com/BorisDmv/blog-platform/internal/db"
	"github.com/BorisDmv/blog-platform/internal/models"
)

var errStore = errors.New("store unavailable")

// failingStore fails every user lookup.
type failingStore struct {
	*db.MemoryStore
}

func (failingStore) GetUserByUsername(context.Context, string) (*models.User, error) {
	return nil, errStore
}

func (failingStore) GetUserByEmail(context.Context, string) (*models.User, error) {
	return nil, errStore
}

func setupService(t *testing.T) (*auth.Service, *db.MemoryStore) {
	t.Helper()

	store := db.NewMemoryStore()
	return auth.NewService(store, auth.NewTokens("s3cret", time.Hour), bcrypt.MinCost), store
}

func register(t *testing.T, svc *auth.Service, username, email, password string) *models.AuthResponse {
	t.Helper()

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return resp
}

func TestService_Register(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	resp := register(t, svc, " alice ", "Alice@Example.com ", "password123")

	if resp.Token == "" {
		t.Errorf("Register() returned no token")
	}
	if resp.User.Username != "alice" || resp.User.Email != "alice@example.com" {
		t.Errorf("Register() user = %+v, want trimmed username and lower-cased email", resp.User)
	}

	stored, err := store.GetUserByID(ctx, resp.User.ID)
	if err != nil || stored == nil {
		t.Fatalf("stored user = (%v, %v)", stored, err)
	}
	if stored.PasswordHash == "password123" {
		t.Errorf("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}

	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	if strings.Contains(string(body), stored.PasswordHash) || strings.Contains(string(body), "password") {
		t.Errorf("response leaks password data: %s", body)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := setupService(t)
	register(t, svc, "alice", "alice@example.com", "password123")

	tests := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"empty username", models.RegisterRequest{Username: " ", Email: "b@example.com", Password: "pw"}},
		{"empty email", models.RegisterRequest{Username: "bob", Password: "pw"}},
		{"empty password", models.RegisterRequest{Username: "bob", Email: "b@example.com"}},
		{"invalid email", models.RegisterRequest{Username: "bob", Email: "bob.example.com", Password: "pw"}},
		{"email-like username", models.RegisterRequest{Username: "carol@example.com", Email: "c@example.com", Password: "pw"}},
		{"long password", models.RegisterRequest{Username: "bob", Email: "b@example.com", Password: strings.Repeat("x", 73)}},
		{"taken username", models.RegisterRequest{Username: "alice", Email: "b@example.com", Password: "pw"}},
		{"taken email", models.RegisterRequest{Username: "bob", Email: "ALICE@example.com", Password: "pw"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestService_RegisterStoreError(t *testing.T) {
	svc := auth.NewService(failingStore{db.NewMemoryStore()}, auth.NewTokens("s3cret", time.Hour), bcrypt.MinCost)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: "pw",
	})
	if !errors.Is(err, errStore) || errors.Is(err, models.ErrValidation) {
		t.Errorf("Register() error = %v, want store error", err)
	}
}

func TestService_Login(t *testing.T) {
	svc, _ := setupService(t)
	registered := register(t, svc, "alice", "alice@example.com", "password123")

	tests := []struct {
		name     string
		login    string
		password string
		wantErr  error
	}{
		{"by email", "alice@example.com", "password123", nil},
		{"by email any case", " ALICE@example.com", "password123", nil},
		{"by username", "alice", "password123", nil},
		{"wrong password", "alice", "password124", models.ErrInvalidCredentials},
		{"unknown user", "bob", "password123", models.ErrInvalidCredentials},
		{"empty login", "", "password123", models.ErrValidation},
		{"empty password", "alice", "", models.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Login(context.Background(), tt.login, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Login() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if resp.User.ID != registered.User.ID || resp.Token == "" {
				t.Errorf("Login() = %+v", resp)
			}
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	svc, _ := setupService(t)
	resp := register(t, svc, "alice", "alice@example.com", "password123")

	user, err := svc.Authenticate(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != resp.User.ID || user.Username != "alice" {
		t.Errorf("Authenticate() = %+v", user)
	}

	ghost, err := auth.NewTokens("s3cret", time.Hour).Issue(&models.User{ID: "deleted-user", Username: "ghost"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	tests := []struct {
		name       string
		token      string
		wantReason string
	}{
		{"missing", "", "missing_token"},
		{"garbage", "garbage", "malformed"},
		{"unknown user", ghost, "unknown_user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), tt.token)
			if !errors.Is(err, models.ErrUnauthorized) {
				t.Fatalf("Authenticate() error = %v, want ErrUnauthorized", err)
			}
			if got := auth.Reason(err); got != tt.wantReason {
				t.Errorf("Reason() = %q, want %q", got, tt.wantReason)
			}
		})
	}
}
