package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// retryableStatuses are the HTTP codes the API clients report in their error
// text as "status NNN". Anything else (401, 403, 422) will not get better on
// a retry.
var retryableStatuses = []string{
	"status 408",
	"status 429",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
}

// IsTransient reports whether err looks like a temporary failure: a network
// timeout, a dropped connection, or a rate-limit/server-error HTTP status.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range retryableStatuses {
		if strings.Contains(msg, s) {
			return true
		}
	}
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"tls handshake timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
