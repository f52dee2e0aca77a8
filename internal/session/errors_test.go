package session

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want TransportSubtype
	}{
		{
			name: "timeout",
			err:  &url.Error{Op: "Get", URL: "http://192.168.1.20", Err: &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}}},
			want: TransportTimeout,
		},
		{
			name: "connection refused",
			err:  &url.Error{Op: "Get", URL: "http://192.168.1.20", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}},
			want: TransportConnectionRefused,
		},
		{
			name: "dns",
			err:  &net.DNSError{Err: "no such host", Name: "device.invalid", IsNotFound: true},
			want: TransportDNS,
		},
		{
			name: "host unreachable",
			err:  &url.Error{Op: "Get", URL: "http://192.168.1.20", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.EHOSTUNREACH}},
			want: TransportHostUnreachable,
		},
		{
			name: "network unreachable",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ENETUNREACH},
			want: TransportNetworkUnreachable,
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: TransportGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTransportError("GET", "/api/v1/smtp", tt.err)
			assert.Equal(t, tt.want, err.Subtype)
			assert.Equal(t, KindTransport, err.Kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPredicates_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("fetch failed: %w", newStateError("no session"))

	assert.True(t, IsStateError(wrapped))
	assert.False(t, IsAuthError(wrapped))
	assert.False(t, IsTransportError(errors.New("plain")))
}

func TestError_Message(t *testing.T) {
	err := newHTTPError("PUT", "/api/v1/smtp", 500, []byte(`{"error":"disk full"}`))

	assert.Equal(t, `HTTP Error (PUT /api/v1/smtp): unexpected status code: 500: {"error":"disk full"}`, err.Error())

	state := newStateError("logout called without an active session")
	assert.Equal(t, "State Error: logout called without an active session", state.Error())
}

func TestNewHTTPError_TruncatesBody(t *testing.T) {
	body := make([]byte, 500)
	for i := range body {
		body[i] = 'x'
	}
	err := newHTTPError("GET", "/", 502, body)
	assert.Less(t, len(err.Message), 260)
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindTransport, "Transport Error"},
		{KindAuth, "Authentication Error"},
		{KindState, "State Error"},
		{KindDecode, "Decode Error"},
		{KindHTTP, "HTTP Error"},
		{Kind(42), "Kind(42)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestShortMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &Error{Kind: KindTransport, Subtype: TransportTimeout}, "Device not responding (timeout)"},
		{"refused", &Error{Kind: KindTransport, Subtype: TransportConnectionRefused}, "Device refused connection"},
		{"auth", &Error{Kind: KindAuth}, "Authentication failed - check credentials"},
		{"state", &Error{Kind: KindState}, "Not logged in"},
		{"decode", &Error{Kind: KindDecode}, "Device returned a non-JSON response"},
		{"http", &Error{Kind: KindHTTP, StatusCode: 503}, "Device error (HTTP 503)"},
		{"plain", errors.New("something else"), "something else"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortMessage(tt.err))
		})
	}
}

func TestTroubleshootingHint(t *testing.T) {
	hints := TroubleshootingHint(&Error{Kind: KindAuth})
	require.NotEmpty(t, hints)
	assert.Contains(t, hints[0], "--username")

	assert.Nil(t, TroubleshootingHint(errors.New("plain")))
	assert.NotEmpty(t, TroubleshootingHint(&Error{Kind: KindHTTP, StatusCode: 500}))
}
