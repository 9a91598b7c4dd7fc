package resilience

import (
	"context"
	"net"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", eris.New("serper: status 429: too many requests"), true},
		{"server error", eris.New("anthropic: create message: status 500"), true},
		{"bad gateway", eris.New("directory: status 502"), true},
		{"unauthorized", eris.New("serper: status 401: invalid key"), false},
		{"not found", eris.New("directory: status 404"), false},
		{"validation", eris.New("anthropic: status 422"), false},
		{"reset", eris.New("read tcp: connection reset by peer"), true},
		{"dns", eris.New("dial tcp: lookup api.serper.dev: no such host"), true},
		{"parse failure", eris.New("serper: parse response: unexpected EOF"), false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientNetTimeout(t *testing.T) {
	var err error = &net.OpError{Op: "dial", Err: &timeoutErr{}}
	assert.True(t, IsTransient(err))
}

type timeoutErr struct{}

func (*timeoutErr) Error() string   { return "i/o timeout" }
func (*timeoutErr) Timeout() bool   { return true }
func (*timeoutErr) Temporary() bool { return true }
