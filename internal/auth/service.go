package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/BorisDmv/blog-platform/internal/logging"
	"github.com/BorisDmv/blog-platform/internal/models"
)

// bcrypt ignores input past 72 bytes; longer passwords are rejected instead.
const maxPasswordBytes = 72

// UserStore is the part of db.Store the credential service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Service registers users, checks credentials and resolves bearer tokens.
type Service struct {
	users  UserStore
	tokens *Tokens
	cost   int
	log    logging.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(users UserStore, tokens *Tokens, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	return &Service{
		users:  users,
		tokens: tokens,
		cost:   bcryptCost,
		log:    logging.GetLogger("auth.service"),
		now:    time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (_ *models.AuthResponse, err error) {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	log := s.log.With(logging.Group("user", "username", username))

	defer func() {
		if err != nil && !errors.Is(err, models.ErrValidation) {
			log.ErrorContext(ctx, "register failed", "error", err)
		}
	}()

	switch {
	case username == "" || email == "" || req.Password == "":
		return nil, fmt.Errorf("%w: username, email and password are required", models.ErrValidation)
	case strings.Contains(username, "@"):
		// login names containing "@" are looked up as emails
		return nil, fmt.Errorf("%w: username cannot contain @", models.ErrValidation)
	case !strings.Contains(email, "@"):
		return nil, fmt.Errorf("%w: email is invalid", models.ErrValidation)
	case len(req.Password) > maxPasswordBytes:
		return nil, fmt.Errorf("%w: password must be at most %d bytes", models.ErrValidation, maxPasswordBytes)
	}

	if existing, err := s.users.GetUserByUsername(ctx, username); err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("%w: username already taken", models.ErrValidation)
	}
	if existing, err := s.users.GetUserByEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	} else if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", models.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username or email already taken", models.ErrValidation)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.InfoContext(ctx, "user registered", "user_id", created.ID)

	return s.respond(created)
}

// Login accepts an email or a username. Unknown users and wrong passwords
// both return models.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, login, password string) (*models.AuthResponse, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, fmt.Errorf("%w: login and password are required", models.ErrValidation)
	}

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(login))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user == nil {
		user, err = s.users.GetUserByUsername(ctx, login)
		if err != nil {
			return nil, fmt.Errorf("get user by username: %w", err)
		}
	}

	if user == nil {
		// keep the response time of unknown users close to a wrong password
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	s.log.DebugContext(ctx, "login successful", "user_id", user.ID)

	return s.respond(user)
}

// Authenticate resolves a bearer token to an existing user. Every failure
// wraps models.ErrUnauthorized; use Reason to tell them apart.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.PublicUser, error) {
	if token == "" {
		return nil, errors.Join(models.ErrUnauthorized, ErrNoToken)
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, errors.Join(models.ErrUnauthorized, err)
	}

	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if user == nil {
		return nil, errors.Join(models.ErrUnauthorized, ErrUnknownUser)
	}

	public := user.Public()
	return &public, nil
}

func (s *Service) respond(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{User: user.Public(), Token: token}, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
