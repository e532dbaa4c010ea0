package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors returned by the gateway. Callers classify with errors.Is.
var (
	// ErrNoSession means no bearer token is stored; the call was not sent
	ErrNoSession = errors.New("gateway: no active session")
	// ErrSessionExpired means the stored token carries an exp in the past
	ErrSessionExpired = errors.New("gateway: session expired")
	// ErrUnauthorized means the server rejected the token (401/403)
	ErrUnauthorized = errors.New("gateway: request unauthorized")
	// ErrRequestFailed is matched by every *HTTPError
	ErrRequestFailed = errors.New("gateway: request failed")
	// ErrTransport means no HTTP response was received
	ErrTransport = errors.New("gateway: transport failure")
	// ErrUnrecognizedEnvelope is matched by every *EnvelopeError
	ErrUnrecognizedEnvelope = errors.New("gateway: unrecognized response envelope")
	// ErrRemote is matched by every *RemoteError
	ErrRemote = errors.New("gateway: remote procedure error")
	// ErrLoginRejected means the server answered the login with success=false
	ErrLoginRejected = errors.New("gateway: login rejected")
	// ErrInvalidRequest means the payload failed validation before sending
	ErrInvalidRequest = errors.New("gateway: invalid request")
)

// HTTPError is a non-2xx response. Remote holds the decoded error envelope
// when the body carried one.
type HTTPError struct {
	Procedure  string
	StatusCode int
	Body       string
	Remote     *RemoteError
}

func (e *HTTPError) Error() string {
	if e.Remote != nil && e.Remote.Message != "" {
		return fmt.Sprintf("gateway: %s: HTTP %d: %s", e.Procedure, e.StatusCode, e.Remote.Message)
	}
	return fmt.Sprintf("gateway: %s: HTTP %d", e.Procedure, e.StatusCode)
}

// Unwrap exposes ErrRequestFailed, ErrUnauthorized for auth statuses, and
// the remote error when present.
func (e *HTTPError) Unwrap() []error {
	errs := []error{ErrRequestFailed}
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		errs = append(errs, ErrUnauthorized)
	}
	if e.Remote != nil {
		errs = append(errs, e.Remote)
	}
	return errs
}

// EnvelopeError is a response whose shape matched no known envelope, or
// whose payload did not decode into the expected type.
type EnvelopeError struct {
	Procedure string
	Reason    string
	Snippet   string
}

func (e *EnvelopeError) Error() string {
	if e.Procedure != "" {
		return fmt.Sprintf("gateway: %s: unrecognized response: %s", e.Procedure, e.Reason)
	}
	return "gateway: unrecognized response: " + e.Reason
}

func (e *EnvelopeError) Unwrap() error {
	return ErrUnrecognizedEnvelope
}

// RemoteError is an error envelope returned by a procedure
type RemoteError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: remote error %s: %s", e.Code, e.Message)
	}
	return "gateway: remote error: " + e.Message
}

func (e *RemoteError) Unwrap() error {
	return ErrRemote
}

// snippet trims a body for error messages
func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
