package result

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	KindComplianceDenied      ErrorKind = "compliance_denied"
	KindComplianceFetchFailed ErrorKind = "compliance_fetch_failed"
	KindConnection            ErrorKind = "connection"
	KindTimeout               ErrorKind = "timeout"
	KindHTTPStatus            ErrorKind = "http_status"
	KindRequest               ErrorKind = "request"
	KindLoginFailed           ErrorKind = "login_failed"
	KindPersistence           ErrorKind = "persistence"
	KindAborted               ErrorKind = "aborted"
	KindInvalidInput          ErrorKind = "invalid_input"
	KindUnknown               ErrorKind = "unknown"
)

// ErrAborted is returned when the user interrupts a suspension point.
var ErrAborted = errors.New("aborted by user")

// Error is a classified failure tied to the URL that caused it.
type Error struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(FormatKind(e.Kind))
	if e.URL != "" {
		b.WriteString(": ")
		b.WriteString(e.URL)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error.
func NewError(kind ErrorKind, rawURL string, err error) *Error {
	return &Error{Kind: kind, URL: rawURL, Err: err}
}

// StatusError reports an HTTP error status for rawURL.
func StatusError(rawURL string, statusCode int) *Error {
	return &Error{Kind: KindHTTPStatus, URL: rawURL, StatusCode: statusCode}
}

// Aborted reports a user interrupt observed while working on rawURL.
func Aborted(rawURL string) *Error {
	return &Error{Kind: KindAborted, URL: rawURL, Err: ErrAborted}
}

// KindOf returns the kind of err, classifying unwrapped transport errors
// on the fly.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	if errors.Is(err, ErrAborted) {
		return KindAborted
	}
	return ClassifyTransport(err)
}

// IsAborted reports whether err came from a user interrupt.
func IsAborted(err error) bool {
	return KindOf(err) == KindAborted
}

// IsTransport reports whether kind is one of the transport failure kinds.
func IsTransport(kind ErrorKind) bool {
	switch kind {
	case KindConnection, KindTimeout, KindHTTPStatus, KindRequest:
		return true
	}
	return false
}

// ClassifyTransport maps an HTTP client error onto a transport kind.
func ClassifyTransport(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	// Cancellation comes from the interrupt handler, not the network.
	if errors.Is(err, context.Canceled) {
		return KindAborted
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	return KindRequest
}

// FormatKind returns a human-readable label for an error kind.
func FormatKind(kind ErrorKind) string {
	switch kind {
	case KindComplianceDenied:
		return "Crawling forbidden by robots.txt"
	case KindComplianceFetchFailed:
		return "robots.txt could not be retrieved"
	case KindConnection:
		return "Connection error"
	case KindTimeout:
		return "Timeout error"
	case KindHTTPStatus:
		return "HTTP error"
	case KindRequest:
		return "Request error"
	case KindLoginFailed:
		return "Login failed"
	case KindPersistence:
		return "Could not write output"
	case KindAborted:
		return "Aborted by user"
	case KindInvalidInput:
		return "Invalid input"
	default:
		return "Unexpected error"
	}
}
