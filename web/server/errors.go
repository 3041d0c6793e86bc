package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Error codes for structured responses.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeUnavailable     = "UNAVAILABLE"
)

// Error is the JSON body of every failed view host response.
type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) status() int {
	switch e.Code {
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err *Error) {
	out := *err
	out.RequestID = middleware.GetReqID(r.Context())
	writeJSON(w, out.status(), &out)
}

// fieldError is one invalid argument.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type fieldErrors []fieldError

func (v *fieldErrors) require(field, value string) {
	if value == "" {
		*v = append(*v, fieldError{Field: field, Message: field + " is required"})
	}
}

func (v *fieldErrors) add(field, message string) {
	*v = append(*v, fieldError{Field: field, Message: message})
}

// err returns nil when no field failed.
func (v fieldErrors) err() *Error {
	if len(v) == 0 {
		return nil
	}
	msg := v[0].Message
	if len(v) > 1 {
		msg = fmt.Sprintf("%s (and %d more errors)", msg, len(v)-1)
	}
	return &Error{
		Code:    CodeValidationError,
		Message: msg,
		Details: map[string]any{"fields": v},
	}
}
