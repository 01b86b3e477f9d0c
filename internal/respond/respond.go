// Package respond writes JSON responses and maps domain errors to status
// codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/BorisDmv/blog-platform/internal/logging"
	"github.com/BorisDmv/blog-platform/internal/models"
)

func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, models.ErrorResponse{Message: message})
}

// Errors renders failures. Outside production the internal error text is
// included in the "error" field.
type Errors struct {
	Production bool
	Log        logging.Logger
}

// Write maps err onto the error taxonomy and writes the response.
func (e Errors) Write(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrForbidden),
		errors.Is(err, models.ErrNotFound):
		Message(w, statusOf(err), err.Error())
	case errors.Is(err, models.ErrInvalidCredentials):
		Message(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, models.ErrUnauthorized):
		Message(w, http.StatusUnauthorized, "Not authorized")
	case errors.Is(err, models.ErrUpstream):
		e.log().WarnContext(r.Context(), "upstream failure", "error", err, "request_id", middleware.GetReqID(r.Context()))
		e.Detailed(w, http.StatusBadGateway, "AI generation failed", err.Error())
	default:
		e.Internal(w, r, err)
	}
}

// Internal logs err and answers 500 without leaking it in production.
func (e Errors) Internal(w http.ResponseWriter, r *http.Request, err error) {
	e.log().ErrorContext(r.Context(), "request failed",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	e.Detailed(w, http.StatusInternalServerError, "Internal server error", err.Error())
}

// Detailed writes message plus detail, dropping detail in production.
func (e Errors) Detailed(w http.ResponseWriter, status int, message, detail string) {
	body := models.ErrorResponse{Message: message}
	if !e.Production {
		body.Error = detail
	}
	JSON(w, status, body)
}

func (e Errors) log() logging.Logger {
	if e.Log == nil {
		return logging.Discard()
	}
	return e.Log
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
