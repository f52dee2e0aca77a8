package session

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Kind represents the category of error that occurred
type Kind int

const (
	// KindTransport indicates a connection or socket failure
	KindTransport Kind = iota
	// KindAuth indicates the device rejected the credentials or token
	KindAuth
	// KindState indicates an operation that needs a prior login
	KindState
	// KindDecode indicates a response body that is not valid JSON
	KindDecode
	// KindHTTP indicates a non-success status on an authenticated call
	KindHTTP
)

// TransportSubtype provides more specific transport error classification
type TransportSubtype int

const (
	TransportGeneral TransportSubtype = iota
	TransportTimeout
	TransportConnectionRefused
	TransportDNS
	TransportHostUnreachable
	TransportNetworkUnreachable
)

// String returns a human-readable name for the error kind
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "Transport Error"
	case KindAuth:
		return "Authentication Error"
	case KindState:
		return "State Error"
	case KindDecode:
		return "Decode Error"
	case KindHTTP:
		return "HTTP Error"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Error represents a failure of one request/response exchange
type Error struct {
	Kind       Kind             // Category of error
	Method     string           // HTTP method of the failed call (if any)
	Path       string           // Request path of the failed call (if any)
	Message    string           // Human-readable error message
	StatusCode int              // HTTP status code (if applicable)
	Err        error            // Underlying error (if any)
	Subtype    TransportSubtype // More specific transport error type
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Method != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Method, e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// classifyTransport narrows a transport failure down to a subtype
func classifyTransport(err error) (TransportSubtype, string) {
	if os.IsTimeout(err) {
		return TransportTimeout, "request timed out"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return TransportDNS, fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return TransportConnectionRefused, "device refused connection"
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return TransportHostUnreachable, "host unreachable"
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return TransportNetworkUnreachable, "network unreachable"
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return classifyTransport(urlErr.Err)
	}

	return TransportGeneral, "request failed"
}

// newTransportError wraps a network failure
func newTransportError(method, path string, err error) *Error {
	subtype, msg := classifyTransport(err)
	return &Error{
		Kind:    KindTransport,
		Method:  method,
		Path:    path,
		Message: msg,
		Err:     err,
		Subtype: subtype,
	}
}

// newAuthError creates an authentication error
func newAuthError(method, path string, statusCode int, message string) *Error {
	return &Error{
		Kind:       KindAuth,
		Method:     method,
		Path:       path,
		Message:    message,
		StatusCode: statusCode,
	}
}

// newStateError creates an error for calls made without a session
func newStateError(message string) *Error {
	return &Error{
		Kind:    KindState,
		Message: message,
	}
}

// newDecodeError creates a decode error
func newDecodeError(method, path string, statusCode int, err error) *Error {
	return &Error{
		Kind:       KindDecode,
		Method:     method,
		Path:       path,
		Message:    "response body is not valid JSON",
		StatusCode: statusCode,
		Err:        err,
	}
}

// newHTTPError creates an HTTP-level error
func newHTTPError(method, path string, statusCode int, body []byte) *Error {
	msg := fmt.Sprintf("unexpected status code: %d", statusCode)
	if snippet := truncate(strings.TrimSpace(string(body)), 200); snippet != "" {
		msg += ": " + snippet
	}
	return &Error{
		Kind:       KindHTTP,
		Method:     method,
		Path:       path,
		Message:    msg,
		StatusCode: statusCode,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsTransportError checks if an error is a transport error
func IsTransportError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransport
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAuth
}

// IsStateError checks if an error is a missing-session error
func IsStateError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindState
}

// IsDecodeError checks if an error is a decode error
func IsDecodeError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindDecode
}

// IsHTTPError checks if an error is an HTTP status error
func IsHTTPError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindHTTP
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case KindTransport:
		switch e.Subtype {
		case TransportTimeout:
			return "Device not responding (timeout)"
		case TransportConnectionRefused:
			return "Device refused connection"
		case TransportDNS:
			return "Cannot resolve device hostname"
		case TransportHostUnreachable:
			return "Device unreachable - check network connection"
		case TransportNetworkUnreachable:
			return "Network unreachable"
		default:
			return "Network error - check connection"
		}
	case KindAuth:
		return "Authentication failed - check credentials"
	case KindState:
		return "Not logged in"
	case KindDecode:
		return "Device returned a non-JSON response"
	case KindHTTP:
		return fmt.Sprintf("Device error (HTTP %d)", e.StatusCode)
	default:
		return e.Message
	}
}

// TroubleshootingHint returns user-facing troubleshooting tips for an error
func TroubleshootingHint(err error) []string {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}

	switch e.Kind {
	case KindTransport:
		switch e.Subtype {
		case TransportTimeout:
			return []string{
				"Check that the device is powered on and reachable",
				"Try increasing --timeout",
			}
		case TransportConnectionRefused:
			return []string{
				"Verify --api-port and the --use-ssl setting",
				"The device API service may not be running",
			}
		case TransportDNS:
			return []string{
				"Use the IP address instead of the hostname",
				"Check your network DNS settings",
			}
		default:
			return []string{
				"Verify the device address is correct",
				"Check that you're on the same network as the device",
				"For self-signed certificates, try --validate-certs=false",
			}
		}
	case KindAuth:
		return []string{
			"Check --username and --api-password",
			"A saved keyring password may be stale: run 'smtpsync login --save'",
		}
	case KindDecode:
		return []string{
			"The URL may point at a web UI instead of the REST API",
			"Run with SMTPSYNC_LOG_LEVEL=debug to see the exchange",
		}
	case KindHTTP:
		if e.StatusCode >= 500 {
			return []string{
				"The device reported an internal error",
				"Check the device logs and try again",
			}
		}
		return []string{"The device rejected the request; check the submitted values"}
	default:
		return nil
	}
}
