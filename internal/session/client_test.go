package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedRequest captures what the fake device saw
type recordedRequest struct {
	Method  string
	Path    string
	Header  http.Header
	Payload []byte
}

// fakeDevice is a minimal REST device with login/logout and one resource
type fakeDevice struct {
	t *testing.T

	mu       sync.Mutex
	requests []recordedRequest

	loginStatus   int
	loginResponse string
	handler       http.HandlerFunc
}

func newFakeDevice(t *testing.T) (*fakeDevice, *httptest.Server) {
	d := &fakeDevice{
		t:             t,
		loginStatus:   http.StatusOK,
		loginResponse: `{"token":"T","refreshToken":"R","expires":3600}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(srv.Close)
	return d, srv
}

func (d *fakeDevice) serve(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	assert.NoError(d.t, err)

	d.mu.Lock()
	d.requests = append(d.requests, recordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Header:  r.Header.Clone(),
		Payload: payload,
	})
	d.mu.Unlock()

	switch r.URL.Path {
	case LoginPath:
		w.WriteHeader(d.loginStatus)
		_, _ = w.Write([]byte(d.loginResponse))
	case LogoutPath:
		_, _ = w.Write([]byte(`{"status":"logged out"}`))
	default:
		if d.handler != nil {
			d.handler(w, r)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}
}

func (d *fakeDevice) last() recordedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(d.t, d.requests)
	return d.requests[len(d.requests)-1]
}

func (d *fakeDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func TestNewClient(t *testing.T) {
	client, err := NewClient("192.168.1.20", 443, WithTLS(true))
	require.NoError(t, err)
	assert.Equal(t, "https://192.168.1.20:443", client.BaseURL)

	client, err = NewClient("fe80::1", 8080)
	require.NoError(t, err)
	assert.Equal(t, "http://[fe80::1]:8080", client.BaseURL)
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := NewClient("", 80)
	assert.Error(t, err)

	_, err = NewClient("device.local", 0)
	assert.Error(t, err)

	_, err = NewClient("device.local", 70000)
	assert.Error(t, err)
}

func TestSetTimeout(t *testing.T) {
	client := NewClientWithURL("http://192.168.1.20")
	client.SetTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
}

func TestLogin_StoresSession(t *testing.T) {
	device, srv := newFakeDevice(t)
	client := NewClientWithURL(srv.URL)

	require.NoError(t, client.Login(context.Background(), "admin", "s3cret"))

	assert.Equal(t, Session{AccessToken: "T", RefreshToken: "R"}, client.Session())

	req := device.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, LoginPath, req.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"username":"admin","password":"s3cret"}`, string(req.Payload))
	assert.Empty(t, req.Header.Get(HeaderAuthToken))
}

func TestLogin_MissingTokens(t *testing.T) {
	device, srv := newFakeDevice(t)
	device.loginResponse = `{"status":"ok"}`
	client := NewClientWithURL(srv.URL)

	require.NoError(t, client.Login(context.Background(), "admin", "pw"))
	assert.False(t, client.Session().Authenticated())

	_, err := client.Get(context.Background(), "/api/v1/smtp")
	require.NoError(t, err)

	req := device.last()
	_, hasToken := req.Header[http.CanonicalHeaderKey(HeaderAuthToken)]
	_, hasRefresh := req.Header[http.CanonicalHeaderKey(HeaderRefreshToken)]
	assert.False(t, hasToken, "absent token must not produce a header")
	assert.False(t, hasRefresh, "absent refresh token must not produce a header")
}

func TestLogin_Rejected(t *testing.T) {
	device, srv := newFakeDevice(t)
	device.loginStatus = http.StatusUnauthorized
	device.loginResponse = `{"error":"bad credentials"}`
	client := NewClientWithURL(srv.URL)

	err := client.Login(context.Background(), "admin", "wrong")

	require.Error(t, err)
	assert.True(t, IsAuthError(err), "got %v", err)
	assert.False(t, client.Session().Authenticated())
}

func TestLogin_RejectedWithHTMLBody(t *testing.T) {
	device, srv := newFakeDevice(t)
	device.loginStatus = http.StatusForbidden
	device.loginResponse = `<html>denied</html>`
	client := NewClientWithURL(srv.URL)

	err := client.Login(context.Background(), "admin", "wrong")

	assert.True(t, IsAuthError(err), "got %v", err)
}

func TestAuthenticatedCallsCarryToken(t *testing.T) {
	device, srv := newFakeDevice(t)
	client := NewClientWithURL(srv.URL)
	ctx := context.Background()

	require.NoError(t, client.Login(ctx, "admin", "pw"))

	_, err := client.Get(ctx, "/api/v1/smtp")
	require.NoError(t, err)
	assert.Equal(t, "T", device.last().Header.Get(HeaderAuthToken))
	assert.Equal(t, "R", device.last().Header.Get(HeaderRefreshToken))

	_, err = client.Put(ctx, "/api/v1/smtp", map[string]any{"port": 25})
	require.NoError(t, err)
	assert.Equal(t, "T", device.last().Header.Get(HeaderAuthToken))

	_, err = client.Delete(ctx, "/api/v1/smtp")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, device.last().Method)
	assert.Equal(t, "T", device.last().Header.Get(HeaderAuthToken))
}

func TestSendRequest_NoBodyOmitsContentType(t *testing.T) {
	device, srv := newFakeDevice(t)
	client := NewClientWithURL(srv.URL)

	resp, err := client.SendRequest(context.Background(), "/api/v1/smtp", NoBody, http.MethodGet)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := device.last()
	_, hasContentType := req.Header["Content-Type"]
	assert.False(t, hasContentType)
	assert.Equal(t, "application/json", req.Header.Get("Accept-Encoding"))
	assert.Empty(t, req.Payload)
}

func TestSendRequest_BodyRoundTrip(t *testing.T) {
	device, srv := newFakeDevice(t)
	client := NewClientWithURL(srv.URL)

	input := map[string]any{
		"enabled":    true,
		"port":       float64(587),
		"recipients": "ops@example.com",
		"user":       nil,
	}

	_, err := client.SendRequest(context.Background(), "/api/v1/smtp", JSONBody(input), http.MethodPut)
	require.NoError(t, err)

	req := device.last()
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept-Encoding"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(req.Payload, &decoded))
	assert.Equal(t, input, decoded)
}

func TestSendRequest_EmptyObjectIsStillABody(t *testing.T) {
	device, srv := newFakeDevice(t)
	client := NewClientWithURL(srv.URL)

	_, err := client.SendRequest(context.Background(), "/api/v1/smtp", JSONBody(map[string]any{}), http.MethodPut)
	require.NoError(t, err)

	assert.Equal(t, "application/json", device.last().Header.Get("Content-Type"))
	assert.Equal(t, "{}", string(device.last().Payload))
}

func TestSendRequest_DecodeError(t *testing.T) {
	device, srv := newFakeDevice(t)
	device.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not valid JSON at all"))
	}
	client := NewClientWithURL(srv.URL)

	_, err := client.SendRequest(context.Background(), "/api/v1/smtp", NoBody, http.MethodGet)

	require.Error(t, err)
	assert.True(t, IsDecodeError(err), "got %v", err)
}

func TestSendRequest_EmptySuccessBodyIsDecodeError(t *testing.T) {
	device, srv := newFakeDevice(t)
	device.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	client := NewClientWithURL(srv.URL)

	_, err := client.Get(context.Background(), "/api/v1/smtp")
	assert.True(t, IsDecodeError(err), "got %v", err)
}

func TestSendRequest_NoContent(t *testing.T) {
	device, srv := newFakeDevice(t)
	device.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	client := NewClientWithURL(srv.URL)

	raw, err := client.Delete(context.Background(), "/api/v1/smtp")
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestSendRequest_UnsupportedMethod(t *testing.T) {
	_, srv := newFakeDevice(t)
	client := NewClientWithURL(srv.URL)

	_, err := client.SendRequest(context.Background(), "/api/v1/smtp", NoBody, http.MethodPatch)
	assert.Error(t, err)
}

func TestSendRequest_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClientWithURL(url)
	_, err := client.Get(context.Background(), "/api/v1/smtp")

	require.Error(t, err)
	assert.True(t, IsTransportError(err), "got %v", err)
}

func TestSendRequest_ContextCancelled(t *testing.T) {
	device, srv := newFakeDevice(t)
	device.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}
	client := NewClientWithURL(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "/api/v1/smtp")
	assert.True(t, IsTransportError(err), "got %v", err)
}

func TestGet_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized is auth", http.StatusUnauthorized, IsAuthError},
		{"forbidden is auth", http.StatusForbidden, IsAuthError},
		{"not found is http", http.StatusNotFound, IsHTTPError},
		{"server error is http", http.StatusInternalServerError, IsHTTPError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, srv := newFakeDevice(t)
			device.handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}
			client := NewClientWithURL(srv.URL)

			_, err := client.Get(context.Background(), "/api/v1/smtp")
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)

			var sessErr *Error
			require.ErrorAs(t, err, &sessErr)
			assert.Equal(t, tt.status, sessErr.StatusCode)
		})
	}
}

func TestLogout_BeforeLogin(t *testing.T) {
	device, srv := newFakeDevice(t)
	client := NewClientWithURL(srv.URL)

	_, err := client.Logout(context.Background())

	require.Error(t, err)
	assert.True(t, IsStateError(err), "got %v", err)
	assert.Zero(t, device.count(), "no request may be sent without a session")
}

func TestLogout_SendsTokensAndClears(t *testing.T) {
	device, srv := newFakeDevice(t)
	client := NewClientWithURL(srv.URL)
	ctx := context.Background()

	require.NoError(t, client.Login(ctx, "admin", "pw"))

	raw, err := client.Logout(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"logged out"}`, string(raw))

	req := device.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, LogoutPath, req.Path)
	assert.Equal(t, "T", req.Header.Get(HeaderAuthToken))
	assert.Equal(t, "R", req.Header.Get(HeaderRefreshToken))
	_, hasContentType := req.Header["Content-Type"]
	assert.False(t, hasContentType)

	assert.Equal(t, Session{}, client.Session())

	_, err = client.Logout(ctx)
	assert.True(t, IsStateError(err), "second logout should fail, got %v", err)
}

func TestLogout_WithoutRefreshToken(t *testing.T) {
	device, srv := newFakeDevice(t)
	device.loginResponse = `{"token":"T"}`
	client := NewClientWithURL(srv.URL)
	ctx := context.Background()

	require.NoError(t, client.Login(ctx, "admin", "pw"))
	_, err := client.Logout(ctx)
	require.NoError(t, err)

	req := device.last()
	assert.Equal(t, LogoutPath, req.Path)
	assert.Equal(t, "T", req.Header.Get(HeaderAuthToken))
	_, hasRefresh := req.Header[http.CanonicalHeaderKey(HeaderRefreshToken)]
	assert.False(t, hasRefresh, "logout must not send an empty refresh-token header")
}

// doerFunc adapts a function to the Doer interface
type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestWithDoer(t *testing.T) {
	var seen *http.Request
	client := NewClientWithURL("http://device.invalid", WithDoer(doerFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"ok":true}`)),
		}, nil
	})))

	raw, err := client.Get(context.Background(), "/api/v1/smtp")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	require.NotNil(t, seen)
	assert.Equal(t, "http://device.invalid/api/v1/smtp", seen.URL.String())
}

func TestWithUserAgent(t *testing.T) {
	device, srv := newFakeDevice(t)
	client := NewClientWithURL(srv.URL, WithUserAgent("smtpsync/v1.0.0"))

	_, err := client.Get(context.Background(), "/api/v1/smtp")
	require.NoError(t, err)
	assert.Equal(t, "smtpsync/v1.0.0", device.last().Header.Get("User-Agent"))
}
