package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Header names used by the device API
const (
	HeaderAuthToken    = "x-auth-token"
	HeaderRefreshToken = "refresh-token"

	headerAcceptEncoding = "Accept-Encoding"
	headerContentType    = "Content-Type"
	mimeJSON             = "application/json"
)

// Session is the authenticated token pair.
// An empty string means the device did not hand out that token.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Authenticated reports whether an access token is held
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// headers returns the session headers to attach to a request.
// Absent tokens produce no header at all.
func (s Session) headers() map[string]string {
	h := make(map[string]string, 2)
	if s.AccessToken != "" {
		h[HeaderAuthToken] = s.AccessToken
	}
	if s.RefreshToken != "" {
		h[HeaderRefreshToken] = s.RefreshToken
	}
	return h
}

// Body is an optional JSON request payload. The zero value is "no body".
type Body struct {
	value   any
	present bool
}

// NoBody is the absent body
var NoBody = Body{}

// JSONBody wraps v as a request payload
func JSONBody(v any) Body {
	return Body{value: v, present: true}
}

// Present reports whether the body carries a payload
func (b Body) Present() bool {
	return b.present
}

// Value returns the wrapped payload
func (b Body) Value() any {
	return b.value
}

// Envelope is one request, fully framed and ready to send. It cannot be
// changed after NewEnvelope returns; accessors hand out copies.
type Envelope struct {
	method  string
	path    string
	headers map[string]string
	payload []byte // nil when the request has no body
}

// NewEnvelope frames a request: it sets the fixed headers, serializes the
// body and merges the session and extra headers.
func NewEnvelope(method, path string, body Body, sess Session, extra map[string]string) (*Envelope, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}

	env := &Envelope{
		method: method,
		path:   path,
		headers: map[string]string{
			headerAcceptEncoding: mimeJSON,
		},
	}

	if body.Present() {
		payload, err := json.Marshal(body.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		env.payload = payload
		env.headers[headerContentType] = mimeJSON
	}

	for k, v := range sess.headers() {
		env.headers[k] = v
	}
	for k, v := range extra {
		env.headers[k] = v
	}

	return env, nil
}

// Method returns the HTTP method
func (e *Envelope) Method() string {
	return e.method
}

// Path returns the request path
func (e *Envelope) Path() string {
	return e.path
}

// Header returns the value of one header and whether it is set
func (e *Envelope) Header(name string) (string, bool) {
	v, ok := e.headers[name]
	return v, ok
}

// Headers returns a copy of all headers
func (e *Envelope) Headers() map[string]string {
	h := make(map[string]string, len(e.headers))
	for k, v := range e.headers {
		h[k] = v
	}
	return h
}

// Payload returns a copy of the serialized body, or nil without one
func (e *Envelope) Payload() []byte {
	if e.payload == nil {
		return nil
	}
	return append([]byte(nil), e.payload...)
}

// HasBody reports whether the envelope carries a payload
func (e *Envelope) HasBody() bool {
	return e.payload != nil
}

// toRequest builds the *http.Request for baseURL
func (e *Envelope) toRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, e.method, baseURL+e.path, bytes.NewReader(e.payload))
	if err != nil {
		return nil, err
	}

	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
