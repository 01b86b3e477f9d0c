package handlers

import (
	"context"
	"net/http"

	"github.com/BorisDmv/blog-platform/internal/models"
	"github.com/BorisDmv/blog-platform/internal/respond"
)

// Credentials is implemented by auth.Service.
type Credentials interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, login, password string) (*models.AuthResponse, error)
}

type UsersHandler struct {
	creds Credentials
	errs  respond.Errors
}

func NewUsersHandler(creds Credentials, errs respond.Errors) *UsersHandler {
	return &UsersHandler{creds: creds, errs: errs}
}

// Register creates an account and returns the public user with a token.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	resp, err := h.creds.Register(r.Context(), req)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, resp)
}

// Login accepts {"email"} or {"username"} together with {"password"}.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	resp, err := h.creds.Login(r.Context(), req.Login(), req.Password)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}
