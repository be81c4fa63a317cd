package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a source failure.
type ErrorKind string

const (
	// KindNetwork means no connection could be established.
	KindNetwork ErrorKind = "network"

	// KindTimeout means a deadline was exceeded.
	KindTimeout ErrorKind = "timeout"

	// KindNotFound means the resource is absent upstream.
	KindNotFound ErrorKind = "not_found"

	// KindServer means the upstream failed (5xx).
	KindServer ErrorKind = "server"

	// KindValidation means malformed input violated a contract.
	KindValidation ErrorKind = "validation"

	// KindUnknown wraps everything else.
	KindUnknown ErrorKind = "unknown"
)

// Error is a classified source failure with upstream context.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("source %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNotFound builds a not-found error for an absent resource.
func NewNotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: resource + " not found"}
}

// NewValidation builds a validation error for malformed input.
func NewValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Kind returns the classification of err, or KindUnknown.
func Kind(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a not-found source error.
func IsNotFound(err error) bool {
	return Kind(err) == KindNotFound
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

// classifyTransport maps a transport-level error to an error kind.
func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

// retryable reports whether a failure of this kind is worth retrying.
// Absent resources and contract violations never are.
func retryable(kind ErrorKind) bool {
	switch kind {
	case KindServer, KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}
