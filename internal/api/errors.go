package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrServerError  = errors.New("server error")

	// ErrRenewalFailed cascades to unauthorized handling.
	ErrRenewalFailed = fmt.Errorf("token renewal failed: %w", ErrUnauthorized)
	// ErrNotSignedIn is returned for calls made without a session.
	ErrNotSignedIn = fmt.Errorf("%w: not signed in", ErrUnauthorized)
)

// RequestFailedError is returned for non-2xx responses other than 401 and 5xx.
type RequestFailedError struct {
	Status  int
	Body    json.RawMessage
	Message string
}

func (e *RequestFailedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// NetworkError is returned when no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Surfaced reports whether the dispatcher or session already showed a
// notification for err. Callers only surface their own message when false.
func Surfaced(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrServerError) ||
		errors.As(err, &netErr)
}

// Outcome maps an error onto a metrics label.
func Outcome(err error) string {
	var (
		netErr    *NetworkError
		failedErr *RequestFailedError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRenewalFailed):
		return "renewal_failed"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrServerError):
		return "server_error"
	case errors.As(err, &failedErr):
		return "request_failed"
	case errors.As(err, &netErr):
		return "network_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// errorMessage extracts a human readable message from an error body.
func errorMessage(status int, body []byte) string {
	var shape struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &shape); err == nil {
		if shape.Message != "" {
			return shape.Message
		}
		if shape.Error != "" {
			return shape.Error
		}
	}
	return http.StatusText(status)
}
