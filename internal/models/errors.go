package models

import "errors"

var (
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned when the login/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when a request carries no usable bearer token.
	ErrUnauthorized = errors.New("not authorized")
	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUpstream is returned when the external generation service fails.
	ErrUpstream = errors.New("upstream service failed")
	// ErrDuplicate is returned by stores when a unique field is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
