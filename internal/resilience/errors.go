package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Cause says why a failed remote call may succeed if repeated.
type Cause int

// Failure causes, from most to least specific.
const (
	CauseNone Cause = iota
	// CauseStatus is an explicit TransientError, usually a retryable HTTP status.
	CauseStatus
	// CauseNetwork is a timeout, reset or lookup failure below HTTP.
	CauseNetwork
	// CauseCapacity is the compute service refusing work it is too busy for.
	CauseCapacity
)

func (c Cause) String() string {
	switch c {
	case CauseStatus:
		return "status"
	case CauseNetwork:
		return "network"
	case CauseCapacity:
		return "capacity"
	default:
		return "none"
	}
}

// TransientError marks a failure as safe to retry. StatusCode is zero when
// the failure did not come from an HTTP response.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError marks err as transient.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var (
	networkMessages = []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	capacityMessages = []string{
		"too many tasks",
		"too many concurrent",
		"quota exceeded",
		"computation timed out",
	}
	resetErrnos = []error{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED}
)

// Classify reports the retryable cause found in err's chain, or CauseNone.
func Classify(err error) Cause {
	if err == nil {
		return CauseNone
	}

	var te *TransientError
	if errors.As(err, &te) {
		return CauseStatus
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseNetwork
	}
	for _, errno := range resetErrnos {
		if errors.Is(err, errno) {
			return CauseNetwork
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, capacityMessages):
		return CauseCapacity
	case containsAny(msg, networkMessages):
		return CauseNetwork
	}
	return CauseNone
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return Classify(err) != CauseNone
}

var transientStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsTransientHTTPStatus reports whether a response status is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	return transientStatus[statusCode]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
