package registrar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrInvalidArgument is returned for local validation failures; no request is sent.
	ErrInvalidArgument = errors.New("registrar: invalid argument")
	// ErrSessionExpired indicates the registrar rejected the session token.
	ErrSessionExpired = errors.New("registrar: session expired")
)

// ErrTransport indicates the request did not complete with a usable response.
// Err is one of ErrTimeout, ErrConnection, ErrForbidden, ErrNotFound,
// ErrRateLimited, ErrStatus or the raw client error.
type ErrTransport struct {
	Op  string
	Err error
}

func (e ErrTransport) Error() string {
	return fmt.Errorf("transport: %s: %w", e.Op, e.Err).Error()
}

func (e ErrTransport) Unwrap() error {
	return e.Err
}

// ErrSessionEstablishment indicates the session handshake returned an unexpected response.
type ErrSessionEstablishment struct {
	Err error
}

func (e ErrSessionEstablishment) Error() string {
	return fmt.Errorf("session establishment failed: %w", e.Err).Error()
}

func (e ErrSessionEstablishment) Unwrap() error {
	return e.Err
}

// ErrUnexpectedResponse indicates a successful response that could not be parsed
// or failed validation, e.g. a course whose subject differs from the request.
type ErrUnexpectedResponse struct {
	Op  string
	Err error
}

func (e ErrUnexpectedResponse) Error() string {
	return fmt.Errorf("unexpected response: %s: %w", e.Op, e.Err).Error()
}

func (e ErrUnexpectedResponse) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing resource (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the registrar rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrStatus is any other non-2xx response.
type ErrStatus struct {
	Code int
}

func (e ErrStatus) Error() string {
	return fmt.Sprintf("http status %d", e.Code)
}

// ErrorType returns a stable label for err, used in logs and metrics.
func ErrorType(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var status ErrStatus
	if errors.As(err, &status) {
		return "status"
	}
	var transport ErrTransport
	if errors.As(err, &transport) {
		return "transport"
	}
	if errors.Is(err, ErrSessionExpired) {
		return "session_expired"
	}
	var establishment ErrSessionEstablishment
	if errors.As(err, &establishment) {
		return "session_establishment"
	}
	var unexpected ErrUnexpectedResponse
	if errors.As(err, &unexpected) {
		return "unexpected_response"
	}
	if errors.Is(err, ErrInvalidArgument) {
		return "invalid_argument"
	}
	return "other"
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var transport ErrTransport
	return errors.As(err, &transport)
}

// ClassifyError wraps a client error or a non-2xx status into ErrTransport.
func ClassifyError(op string, err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTransport{Op: op, Err: ErrTimeout{Err: err}}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTransport{Op: op, Err: ErrTimeout{Err: err}}
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return ErrTransport{Op: op, Err: ErrConnection{Err: err}}
		}
		return ErrTransport{Op: op, Err: err}
	}

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}
	status := ErrStatus{Code: statusCode}
	switch statusCode {
	case http.StatusForbidden:
		return ErrTransport{Op: op, Err: ErrForbidden{Err: status}}
	case http.StatusNotFound:
		return ErrTransport{Op: op, Err: ErrNotFound{Err: status}}
	case http.StatusTooManyRequests:
		return ErrTransport{Op: op, Err: ErrRateLimited{Err: status}}
	}
	return ErrTransport{Op: op, Err: status}
}
