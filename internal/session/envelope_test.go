package session

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_Headers(t *testing.T) {
	tests := []struct {
		name            string
		body            Body
		wantContentType bool
	}{
		{"no body", NoBody, false},
		{"zero body", Body{}, false},
		{"object body", JSONBody(map[string]int{"port": 25}), true},
		{"null body", JSONBody(nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := NewEnvelope(http.MethodPut, "/api/v1/smtp", tt.body, Session{}, nil)
			require.NoError(t, err)

			accept, _ := env.Header("Accept-Encoding")
			assert.Equal(t, "application/json", accept)
			_, has := env.Header("Content-Type")
			assert.Equal(t, tt.wantContentType, has)
			assert.Equal(t, tt.wantContentType, env.HasBody())
		})
	}
}

func TestNewEnvelope_SessionHeaders(t *testing.T) {
	env, err := NewEnvelope(http.MethodGet, "/api/v1/smtp", NoBody, Session{AccessToken: "T"}, nil)
	require.NoError(t, err)

	token, _ := env.Header(HeaderAuthToken)
	assert.Equal(t, "T", token)
	_, hasRefresh := env.Header(HeaderRefreshToken)
	assert.False(t, hasRefresh)
}

func TestNewEnvelope_ExtraHeadersWin(t *testing.T) {
	env, err := NewEnvelope(http.MethodPost, LogoutPath, NoBody,
		Session{AccessToken: "old"},
		map[string]string{HeaderAuthToken: "new"})
	require.NoError(t, err)

	token, _ := env.Header(HeaderAuthToken)
	assert.Equal(t, "new", token)
}

func TestEnvelope_AccessorsReturnCopies(t *testing.T) {
	env, err := NewEnvelope(http.MethodPut, "/api/v1/smtp", JSONBody(map[string]int{"port": 25}),
		Session{AccessToken: "T"}, nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, env.Method())
	assert.Equal(t, "/api/v1/smtp", env.Path())

	headers := env.Headers()
	headers[HeaderAuthToken] = "tampered"
	delete(headers, "Content-Type")
	token, _ := env.Header(HeaderAuthToken)
	assert.Equal(t, "T", token)
	_, hasContentType := env.Header("Content-Type")
	assert.True(t, hasContentType)

	payload := env.Payload()
	require.JSONEq(t, `{"port":25}`, string(payload))
	payload[0] = 'x'
	assert.JSONEq(t, `{"port":25}`, string(env.Payload()))
}

func TestNewEnvelope_UnencodableBody(t *testing.T) {
	_, err := NewEnvelope(http.MethodPut, "/x", JSONBody(make(chan int)), Session{}, nil)
	assert.Error(t, err)
}

func TestBody(t *testing.T) {
	assert.False(t, NoBody.Present())
	assert.Nil(t, NoBody.Value())

	b := JSONBody("x")
	assert.True(t, b.Present())
	assert.Equal(t, "x", b.Value())
}

func TestSession_Authenticated(t *testing.T) {
	assert.False(t, Session{}.Authenticated())
	assert.False(t, Session{RefreshToken: "R"}.Authenticated())
	assert.True(t, Session{AccessToken: "T"}.Authenticated())
}
