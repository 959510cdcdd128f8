package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrAuth        = errors.New("authentication failed")
	ErrForbidden   = errors.New("not allowed")
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("too many requests")
	ErrServer      = errors.New("server error")
)

// Error is a failed API call. Message is the backend's "error" field when
// it sent one.
type Error struct {
	Status  int
	Message string
	Kind    error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%v (%d): %s", e.Kind, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

func kindFor(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized:
		return ErrAuth
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 400 && status < 500:
		return ErrValidation
	}
	return ErrServer
}

// Message returns the server-provided message of err, or fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" && apiErr.Status != 0 {
		return apiErr.Message
	}
	return fallback
}
