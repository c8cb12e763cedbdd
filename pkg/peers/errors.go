package peers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrNotConfigured is returned when a peer has no base URL. It is treated like a
// refused connection.
var ErrNotConfigured = errors.New("peer URL not configured")

// PeerError is a failed exchange with a peer service. StatusCode is zero when
// no HTTP response was received.
type PeerError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *PeerError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("peer %s: HTTP %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("peer %s: %v", e.Service, e.Err)
}

func (e *PeerError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err matches a transient transport failure: a timeout,
// a refused connection, or an HTTP 502, 503 or 504. Only these qualify for a
// fallback substitution. A canceled request context is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var peerErr *PeerError
	if errors.As(err, &peerErr) {
		switch peerErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		case 0:
			// No response; fall through to transport checks.
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, ErrNotConfigured) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out")
}
