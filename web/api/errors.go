package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is returned for any response whose status code the caller did not accept.
type Error struct {
	StatusCode int
	// Message is the user-facing message extracted from the body.
	Message string
	// Body is the raw response body.
	Body string
}

func (e *Error) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func newError(status int, body []byte) *Error {
	raw := string(body)
	return &Error{
		StatusCode: status,
		Message:    extractUserFriendlyMessage(raw, status),
		Body:       raw,
	}
}

// extractUserFriendlyMessage pulls the "error" or "message" field out of a JSON
// body, falling back to the raw body or the status text.
func extractUserFriendlyMessage(raw string, status int) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if text := http.StatusText(status); text != "" {
			return text
		}
		return "An unexpected error occurred"
	}

	if strings.HasPrefix(raw, "{") {
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Msg     string `json:"msg"`
		}
		if err := json.Unmarshal([]byte(raw), &body); err == nil {
			switch {
			case body.Error != "":
				return body.Error
			case body.Message != "":
				return body.Message
			case body.Msg != "":
				return body.Msg
			}
		}
	}

	return raw
}

// StatusCode returns the HTTP status carried by err, or 0 for transport errors.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsForbidden reports whether err is a 403 response.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
