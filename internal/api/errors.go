package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Use errors.Is against these; *Error unwraps to its kind.
var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("conflict")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrNetwork            = errors.New("network failure")
	ErrServer             = errors.New("server error")
)

// Error is a failed API call
type Error struct {
	Op      string // e.g. "GET /api/posts"
	Status  int    // HTTP status, 0 when no response was received
	Message string // server supplied message, if any
	Kind    error  // one of the Err* kinds above
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, msg)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage is the text a form should show for err
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	switch {
	case errors.Is(err, ErrAuthRequired), errors.Is(err, ErrSessionExpired):
		return "Please log in again."
	case errors.Is(err, ErrInvalidCredentials):
		return "Email or password is incorrect."
	case errors.Is(err, ErrPermissionDenied):
		return "You do not have permission to do that."
	case errors.Is(err, ErrNotFound):
		return "It no longer exists."
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrMalformedResponse), errors.Is(err, ErrServer):
		return "Something went wrong. Try again."
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

// IsNetworkClass reports failures that say nothing about the request itself
func IsNetworkClass(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrServer)
}

// kindForStatus maps a non-2xx status to an error kind
func kindForStatus(status int, authed bool) error {
	switch {
	case status == http.StatusUnauthorized:
		if authed {
			return ErrSessionExpired
		}
		return ErrInvalidCredentials
	case status == http.StatusForbidden:
		return ErrPermissionDenied
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status >= 400 && status < 500:
		return ErrBadRequest
	default:
		return ErrServer
	}
}
