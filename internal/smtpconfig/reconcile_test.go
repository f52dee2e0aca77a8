package smtpconfig

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/smtpsync/internal/session"
)

// fakeAPI records every call made by the Reconciler
type fakeAPI struct {
	current   json.RawMessage
	getErr    error
	putErr    error
	deleteErr error

	gets    int
	puts    []json.RawMessage
	deletes int
}

func (f *fakeAPI) Get(_ context.Context, path string) (json.RawMessage, error) {
	f.gets++
	if path != SMTPPath {
		return nil, errors.New("unexpected path " + path)
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.current, nil
}

func (f *fakeAPI) Put(_ context.Context, path string, body any) (json.RawMessage, error) {
	if path != SMTPPath {
		return nil, errors.New("unexpected path " + path)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, payload)
	if f.putErr != nil {
		return nil, f.putErr
	}
	return json.RawMessage(`{"message":"ok"}`), nil
}

func (f *fakeAPI) Delete(_ context.Context, path string) (json.RawMessage, error) {
	if path != SMTPPath {
		return nil, errors.New("unexpected path " + path)
	}
	f.deletes++
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return json.RawMessage(`{"message":"SMTP configuration deleted"}`), nil
}

func deviceState(t *testing.T, cfg SMTPConfig) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	return raw
}

func sampleConfig() SMTPConfig {
	return SMTPConfig{
		Enabled:     Bool(true),
		Encrypted:   Bool(false),
		Password:    String("hunter2"),
		Port:        Int(587),
		Recipients:  String("ops@example.com,oncall@example.com"),
		SenderEmail: String("device@example.com"),
		Server:      String("smtp.example.com"),
		User:        String("device"),
	}
}

func TestReconcile_EqualIsUnchanged(t *testing.T) {
	configs := []SMTPConfig{
		{},
		sampleConfig(),
		{Enabled: Bool(false)},
		{Port: Int(0), Server: String("")},
	}

	for _, cfg := range configs {
		t.Run(cfg.String(), func(t *testing.T) {
			api := &fakeAPI{current: deviceState(t, cfg)}
			rec := NewReconciler(api)

			result, err := rec.Reconcile(context.Background(), cfg, Options{})
			require.NoError(t, err)

			assert.False(t, result.Changed)
			assert.Equal(t, MessageUpToDate, result.Message)
			assert.Empty(t, result.Diff)
			assert.Empty(t, api.puts, "no PUT when already up to date")
			assert.Equal(t, 1, api.gets)
		})
	}
}

func TestReconcile_DifferentSendsOnePut(t *testing.T) {
	current := sampleConfig()
	desired := sampleConfig()
	desired.Port = Int(25)

	api := &fakeAPI{current: deviceState(t, current)}
	rec := NewReconciler(api)

	result, err := rec.Reconcile(context.Background(), desired, Options{})
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, MessageUpdated, result.Message)
	assert.True(t, result.Original.Equal(current))
	require.Len(t, api.puts, 1)

	var sent SMTPConfig
	require.NoError(t, json.Unmarshal(api.puts[0], &sent))
	assert.True(t, sent.Equal(desired), "PUT body must be the desired object")

	require.Len(t, result.Diff, 1)
	assert.Equal(t, FieldChange{Field: "port", Before: "587", After: "25"}, result.Diff[0])
}

func TestReconcile_AbsentVersusPresentDiffers(t *testing.T) {
	tests := []struct {
		name    string
		current SMTPConfig
		desired SMTPConfig
	}{
		{"absent bool vs false", SMTPConfig{}, SMTPConfig{Enabled: Bool(false)}},
		{"absent string vs empty", SMTPConfig{User: String("")}, SMTPConfig{}},
		{"absent int vs zero", SMTPConfig{}, SMTPConfig{Port: Int(0)}},
		{"password change", SMTPConfig{Password: String("a")}, SMTPConfig{Password: String("b")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{current: deviceState(t, tt.current)}
			result, err := NewReconciler(api).Reconcile(context.Background(), tt.desired, Options{})
			require.NoError(t, err)

			assert.True(t, result.Changed)
			assert.Len(t, api.puts, 1)
		})
	}
}

func TestReconcile_PutSendsNullForUnsetFields(t *testing.T) {
	api := &fakeAPI{current: deviceState(t, sampleConfig())}
	desired := SMTPConfig{Enabled: Bool(false)}

	_, err := NewReconciler(api).Reconcile(context.Background(), desired, Options{})
	require.NoError(t, err)
	require.Len(t, api.puts, 1)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(api.puts[0], &sent))
	assert.Len(t, sent, 8)
	assert.Equal(t, false, sent["enabled"])
	assert.Contains(t, sent, "server")
	assert.Nil(t, sent["server"])
}

func TestReconcile_DryRunNeverPuts(t *testing.T) {
	current := sampleConfig()
	desired := sampleConfig()
	desired.Server = String("mail.example.org")

	api := &fakeAPI{current: deviceState(t, current)}
	result, err := NewReconciler(api).Reconcile(context.Background(), desired, Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, MessageWouldUpdate, result.Message)
	assert.Empty(t, api.puts)
	assert.Len(t, result.Diff, 1)
}

func TestReconcile_DryRunUpToDate(t *testing.T) {
	api := &fakeAPI{current: deviceState(t, sampleConfig())}
	result, err := NewReconciler(api).Reconcile(context.Background(), sampleConfig(), Options{DryRun: true})
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Equal(t, MessageUpToDate, result.Message)
}

func TestReconcile_KeepUnset(t *testing.T) {
	current := sampleConfig()
	api := &fakeAPI{current: deviceState(t, current)}

	result, err := NewReconciler(api).Reconcile(context.Background(),
		SMTPConfig{Port: Int(25)}, Options{KeepUnset: true})
	require.NoError(t, err)

	assert.True(t, result.Changed)
	require.Len(t, api.puts, 1)

	var sent SMTPConfig
	require.NoError(t, json.Unmarshal(api.puts[0], &sent))
	expected := sampleConfig()
	expected.Port = Int(25)
	assert.True(t, sent.Equal(expected))
	assert.Len(t, result.Diff, 1)
}

func TestReconcile_KeepUnsetAlreadyMatching(t *testing.T) {
	api := &fakeAPI{current: deviceState(t, sampleConfig())}

	result, err := NewReconciler(api).Reconcile(context.Background(),
		SMTPConfig{Port: Int(587)}, Options{KeepUnset: true})
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Empty(t, api.puts)
}

func TestReconcile_GetErrorStopsBeforePut(t *testing.T) {
	authErr := &session.Error{Kind: session.KindAuth, StatusCode: 401, Message: "denied"}
	api := &fakeAPI{getErr: authErr}

	result, err := NewReconciler(api).Reconcile(context.Background(), sampleConfig(), Options{})
	assert.Nil(t, result)
	assert.True(t, session.IsAuthError(err))
	assert.Empty(t, api.puts)
}

func TestReconcile_PutErrorIsReturned(t *testing.T) {
	api := &fakeAPI{
		current: deviceState(t, SMTPConfig{}),
		putErr:  &session.Error{Kind: session.KindHTTP, StatusCode: 500},
	}

	result, err := NewReconciler(api).Reconcile(context.Background(), sampleConfig(), Options{})
	assert.Nil(t, result, "a failed PUT reports no change")
	assert.True(t, session.IsHTTPError(err))
}

func TestReconcile_MalformedCurrent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"array", `[1,2,3]`},
		{"wrong type", `{"port":"twenty-five"}`},
		{"string", `"maintenance"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{current: json.RawMessage(tt.raw)}
			_, err := NewReconciler(api).Reconcile(context.Background(), sampleConfig(), Options{})
			assert.True(t, session.IsDecodeError(err))
			assert.Empty(t, api.puts)
		})
	}
}

func TestFetch_NullIsEmpty(t *testing.T) {
	api := &fakeAPI{current: json.RawMessage(`null`)}
	cfg, err := NewReconciler(api).Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.IsEmpty())
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name        string
		current     SMTPConfig
		dryRun      bool
		wantChanged bool
		wantMessage string
		wantDeletes int
	}{
		{"removes", sampleConfig(), false, true, MessageRemoved, 1},
		{"dry run", sampleConfig(), true, true, MessageWouldRemove, 0},
		{"already absent", SMTPConfig{}, false, false, MessageAbsent, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{current: deviceState(t, tt.current)}
			result, err := NewReconciler(api).Delete(context.Background(), tt.dryRun)
			require.NoError(t, err)

			assert.Equal(t, tt.wantChanged, result.Changed)
			assert.Equal(t, tt.wantMessage, result.Message)
			assert.Equal(t, tt.wantDeletes, api.deletes)
		})
	}
}

func TestDelete_Error(t *testing.T) {
	api := &fakeAPI{
		current:   deviceState(t, sampleConfig()),
		deleteErr: &session.Error{Kind: session.KindHTTP, StatusCode: 404},
	}
	_, err := NewReconciler(api).Delete(context.Background(), false)
	assert.True(t, session.IsHTTPError(err))
}

func TestResult_Redacted(t *testing.T) {
	r := &Result{Original: sampleConfig(), Desired: sampleConfig()}
	red := r.Redacted()

	assert.Equal(t, Redacted, *red.Original.Password)
	assert.Equal(t, Redacted, *red.Desired.Password)
	assert.Equal(t, "hunter2", *r.Original.Password, "original result untouched")

	out, err := json.Marshal(red)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
}
