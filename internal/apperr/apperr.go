// Package apperr defines the error kinds shared by every bounded context and
// their HTTP representation.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidRange = errors.New("invalid range")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Kind names the error kind of err, or "InternalError" when err wraps none.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrConflict):
		return "Conflict"
	case errors.Is(err, ErrInvalidRange):
		return "InvalidRange"
	case errors.Is(err, ErrBadRequest):
		return "BadRequest"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	default:
		return "InternalError"
	}
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error payload.
type Body struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

// Write renders err as a JSON error response. Internal errors hide their message.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	message := "internal error"
	if status != http.StatusInternalServerError && err != nil {
		message = err.Error()
	}
	path := ""
	if r != nil {
		path = r.URL.Path
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     Kind(err),
		Message:   message,
		Path:      path,
	})
}

// BadRequest wraps msg as an ErrBadRequest.
func BadRequest(msg string) error {
	return &kindError{kind: ErrBadRequest, msg: msg}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }
