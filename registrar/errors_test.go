package registrar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "ok status", err: nil, statusCode: http.StatusOK, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusBadGateway, expected: "status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorType(ClassifyError("courses", tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("ClassifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "canceled", err: fmt.Errorf("fetch: %w", context.Canceled), expected: "canceled"},
		{name: "session expired", err: fmt.Errorf("%w: CSCE returned 401", ErrSessionExpired), expected: "session_expired"},
		{name: "establishment", err: ErrSessionEstablishment{Err: errors.New("no fwdURL")}, expected: "session_establishment"},
		{name: "unexpected", err: ErrUnexpectedResponse{Op: "courses", Err: errors.New("bad json")}, expected: "unexpected_response"},
		{name: "invalid argument", err: fmt.Errorf("%w: page 0", ErrInvalidArgument), expected: "invalid_argument"},
		{name: "other", err: errors.New("boom"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorType(tt.err); got != tt.expected {
				t.Fatalf("ErrorType(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestTransportErrorUnwraps(t *testing.T) {
	err := ClassifyError("session", nil, http.StatusForbidden)
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %T", err)
	}
	var status ErrStatus
	if !errors.As(err, &status) || status.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 in chain, got %v", err)
	}
}
