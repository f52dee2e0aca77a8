package session

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/smtpsync/internal/logging"
)

const (
	// LoginPath is the device login endpoint
	LoginPath = "/api/v1/login"

	// LogoutPath is the device logout endpoint
	LogoutPath = "/api/v1/logout"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second

	// maxResponseSize caps how much of a response body is read
	maxResponseSize = 4 << 20
)

// Doer is the transport a Client sends requests through.
// *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a decoded device response
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Decode unmarshals the response body into v
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Client performs authenticated JSON exchanges with one device
type Client struct {
	// BaseURL is the base URL for the device (e.g., "https://192.168.1.20:443")
	BaseURL string

	httpClient *http.Client
	doer       Doer
	userAgent  string

	mu      sync.RWMutex
	session Session
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	useTLS        bool
	validateCerts bool
	timeout       time.Duration
	doer          Doer
	userAgent     string
}

// WithTLS selects https instead of http
func WithTLS(useTLS bool) Option {
	return func(o *clientOptions) { o.useTLS = useTLS }
}

// WithValidateCerts toggles TLS certificate verification (default: on)
func WithValidateCerts(validate bool) Option {
	return func(o *clientOptions) { o.validateCerts = validate }
}

// WithTimeout sets the HTTP request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) { o.timeout = timeout }
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) { o.userAgent = ua }
}

// WithDoer replaces the HTTP transport, mostly for tests
func WithDoer(d Doer) Option {
	return func(o *clientOptions) { o.doer = d }
}

// NewClient creates a client for the device at host:port
func NewClient(host string, port int, opts ...Option) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("device host is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid device port %d", port)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	scheme := "http"
	if o.useTLS {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))

	return newClient(baseURL, o), nil
}

// NewClientWithURL creates a new client with a full base URL
// baseURL: Full base URL (e.g., "http://192.168.1.20:8080")
func NewClientWithURL(baseURL string, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newClient(baseURL, o)
}

func defaultOptions() clientOptions {
	return clientOptions{
		validateCerts: true,
		timeout:       DefaultTimeout,
	}
}

func newClient(baseURL string, o clientOptions) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !o.validateCerts {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via --validate-certs=false
	}

	c := &Client{
		BaseURL:    baseURL,
		httpClient: &http.Client{Timeout: o.timeout, Transport: transport},
		userAgent:  o.userAgent,
	}
	c.doer = c.httpClient
	if o.doer != nil {
		c.doer = o.doer
	}
	return c
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Session returns a copy of the current token pair
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) setSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Login authenticates against the device and stores the returned tokens.
// Missing tokens in the response are not an error; the corresponding
// header is simply omitted on later calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	resp, err := c.exchange(ctx, http.MethodPost, LoginPath, JSONBody(loginRequest{
		Username: username,
		Password: password,
	}), Session{}, nil)
	if err != nil {
		return err
	}

	if !isSuccess(resp.StatusCode) {
		logging.Warn("Login rejected",
			zap.String("username", username),
			zap.Int("status_code", resp.StatusCode),
		)
		return newAuthError(http.MethodPost, LoginPath, resp.StatusCode,
			fmt.Sprintf("login rejected with status %d", resp.StatusCode))
	}

	var lr loginResponse
	if err := resp.Decode(&lr); err != nil {
		return newDecodeError(http.MethodPost, LoginPath, resp.StatusCode, err)
	}

	c.setSession(Session{AccessToken: lr.Token, RefreshToken: lr.RefreshToken})

	logging.Info("Logged in",
		zap.String("username", username),
		zap.Bool("access_token", lr.Token != ""),
		zap.Bool("refresh_token", lr.RefreshToken != ""),
	)
	return nil
}

// Logout ends the session on the device and clears the local token pair.
// It fails with a State error when no login happened, rather than sending
// empty token headers.
func (c *Client) Logout(ctx context.Context) (json.RawMessage, error) {
	sess := c.Session()
	if !sess.Authenticated() {
		return nil, newStateError("logout called without an active session")
	}

	// Same header rules as every other call: an absent refresh token sends
	// no refresh-token header.
	resp, err := c.exchange(ctx, http.MethodPost, LogoutPath, NoBody, sess, nil)
	// Cleared regardless of outcome.
	c.setSession(Session{})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(http.MethodPost, LogoutPath, resp); err != nil {
		return nil, err
	}

	logging.Info("Logged out")
	return resp.Body, nil
}

// Get issues an authenticated GET
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, path, NoBody)
}

// Put issues an authenticated PUT with a JSON body
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPut, path, JSONBody(body))
}

// Delete issues an authenticated DELETE
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodDelete, path, NoBody)
}

func (c *Client) call(ctx context.Context, method, path string, body Body) (json.RawMessage, error) {
	resp, err := c.SendRequest(ctx, path, body, method)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(method, path, resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// SendRequest is the shared request primitive: it frames the envelope with
// the current session, sends it and decodes the JSON response. The status is
// returned as-is; callers decide what counts as success.
func (c *Client) SendRequest(ctx context.Context, path string, body Body, method string) (*Response, error) {
	return c.exchange(ctx, method, path, body, c.Session(), nil)
}

func (c *Client) exchange(ctx context.Context, method, path string, body Body, sess Session, extra map[string]string) (*Response, error) {
	env, err := NewEnvelope(method, path, body, sess, extra)
	if err != nil {
		return nil, err
	}

	req, err := env.toRequest(ctx, c.BaseURL)
	if err != nil {
		return nil, newTransportError(method, path, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	logging.LogHTTPRequest(method, path, req.Header)

	httpResp, err := c.doer.Do(req)
	if err != nil {
		return nil, newTransportError(method, path, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, newTransportError(method, path, err)
	}

	logging.LogHTTPResponse(method, path, httpResp.StatusCode, len(raw))

	// A bodyless 204 carries no JSON; anything else must.
	if len(raw) == 0 && httpResp.StatusCode == http.StatusNoContent {
		return &Response{StatusCode: httpResp.StatusCode, Body: json.RawMessage("null")}, nil
	}

	if !json.Valid(raw) {
		if !isSuccess(httpResp.StatusCode) {
			// Error pages are often HTML; the status says more than the body.
			return &Response{StatusCode: httpResp.StatusCode, Body: json.RawMessage(quoteRaw(raw))}, nil
		}
		var v any
		return nil, newDecodeError(method, path, httpResp.StatusCode, json.Unmarshal(raw, &v))
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: json.RawMessage(raw)}, nil
}

// quoteRaw turns a non-JSON error body into a JSON string so Response.Body
// is always valid JSON.
func quoteRaw(raw []byte) []byte {
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return []byte("null")
	}
	return quoted
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func checkStatus(method, path string, resp *Response) error {
	if isSuccess(resp.StatusCode) {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return newAuthError(method, path, resp.StatusCode, "session rejected by device")
	}
	return newHTTPError(method, path, resp.StatusCode, resp.Body)
}
