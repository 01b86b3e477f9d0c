// Package session holds the signed-in identity of an API client and persists
// it between command invocations.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BorisDmv/blog-platform/internal/models"
)

// State is the current session. The zero value is a logged-out session.
type State struct {
	mu    sync.RWMutex
	user  *models.PublicUser
	token string
}

type persisted struct {
	User  *models.PublicUser `json:"user,omitempty"`
	Token string             `json:"token,omitempty"`
}

func New() *State {
	return &State{}
}

func (s *State) SignIn(user models.PublicUser, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = &user
	s.token = token
}

func (s *State) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.token = ""
}

// Current returns the signed-in user and token. ok is false when logged out.
func (s *State) Current() (user models.PublicUser, token string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil || s.token == "" {
		return models.PublicUser{}, "", false
	}
	return *s.user, s.token, true
}

func (s *State) LoggedIn() bool {
	_, _, ok := s.Current()
	return ok
}

// Token returns the bearer token, or "" when logged out.
func (s *State) Token() string {
	_, token, _ := s.Current()
	return token
}

// Save writes the session to path, readable by the owner only.
func (s *State) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(persisted{User: s.user, Token: s.token}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load reads a session saved by Save. A missing file yields a logged-out
// session.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}

	s := New()
	if p.User != nil && p.Token != "" {
		s.SignIn(*p.User, p.Token)
	}
	return s, nil
}
