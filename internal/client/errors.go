package client

import (
	"context"
	"errors"
	"net"
	"net/url"
)

const defaultErrorMessage = "Request failed"

var (
	// ErrUnauthorized is returned for 401 responses. The unauthorized
	// handler has already been invoked when a caller sees it.
	ErrUnauthorized = errors.New("authentication required")

	// ErrMissingID matches every *IDError.
	ErrMissingID = errors.New("id is required")
)

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IDError is returned before any request when a record id is absent or is
// the literal "undefined" left behind by a malformed route.
type IDError struct {
	Label string
}

func (e *IDError) Error() string {
	return e.Label + " id is required"
}

// Is makes errors.Is(err, ErrMissingID) match.
func (e *IDError) Is(target error) bool {
	return target == ErrMissingID
}

// ValidID reports whether id can be sent to the API.
func ValidID(id string) bool {
	return id != "" && id != "undefined"
}

func checkID(id, label string) error {
	if !ValidID(id) {
		return &IDError{Label: label}
	}
	return nil
}

// CheckID returns an *IDError when id is absent or "undefined".
func CheckID(id, label string) error {
	return checkID(id, label)
}

// Message converts any client error into one short human-readable line.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	var idErr *IDError
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Message == "" {
			return defaultErrorMessage
		}
		return apiErr.Message
	case errors.As(err, &idErr):
		return idErr.Error()
	case errors.Is(err, ErrUnauthorized):
		return "Session expired, please sign in again"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	case errors.As(err, &netErr), errors.As(err, &urlErr):
		return "Network error: could not reach the API"
	}
	return err.Error()
}
