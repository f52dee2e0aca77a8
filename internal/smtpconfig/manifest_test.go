package smtpconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SMTPConfig
		wantErr string
	}{
		{
			name: "full",
			input: `
enabled: true
encrypted: false
password: hunter2
port: 587
recipients: ops@example.com,oncall@example.com
sender_email: device@example.com
server: smtp.example.com
user: device
`,
			want: sampleConfig(),
		},
		{
			name:  "recipients string",
			input: "port: 25\nrecipients: ops@example.com\n",
			want:  SMTPConfig{Port: Int(25), Recipients: String("ops@example.com")},
		},
		{
			name:  "recipients list",
			input: "recipients:\n  - a@example.com\n  - b@example.com\n",
			want:  SMTPConfig{Recipients: String("a@example.com,b@example.com")},
		},
		{
			name:  "missing fields stay absent",
			input: "port: 25\n",
			want:  SMTPConfig{Port: Int(25)},
		},
		{
			name:  "explicit null",
			input: "server: ~\nrecipients: null\n",
			want:  SMTPConfig{},
		},
		{
			name:  "empty document",
			input: "",
			want:  SMTPConfig{},
		},
		{
			name:    "unknown key",
			input:   "hostname: smtp.example.com\n",
			wantErr: "invalid manifest",
		},
		{
			name:    "wrong type",
			input:   "port: twenty-five\n",
			wantErr: "invalid manifest",
		},
		{
			name:    "recipients mapping",
			input:   "recipients:\n  to: a@example.com\n",
			wantErr: "recipients must be a string or a list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseManifest(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smtp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: smtp.example.com\nport: 25\n"), 0o600))

	cfg, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", *cfg.Server)
	assert.Equal(t, 25, *cfg.Port)

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
