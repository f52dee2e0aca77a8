package smtpconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifest is the on-disk form of a desired configuration. Recipients may be
// written as a single comma separated string or as a list.
type manifest struct {
	Enabled     *bool     `yaml:"enabled"`
	Encrypted   *bool     `yaml:"encrypted"`
	Password    *string   `yaml:"password"`
	Port        *int      `yaml:"port"`
	Recipients  yaml.Node `yaml:"recipients"`
	SenderEmail *string   `yaml:"sender_email"`
	Server      *string   `yaml:"server"`
	User        *string   `yaml:"user"`
}

// LoadManifest reads a desired configuration from a YAML file
func LoadManifest(path string) (SMTPConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SMTPConfig{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	cfg, err := ParseManifest(bytes.NewReader(data))
	if err != nil {
		return SMTPConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseManifest decodes a desired configuration. Keys that are not SMTP
// fields are rejected; keys that are missing stay absent.
func ParseManifest(r io.Reader) (SMTPConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return SMTPConfig{}, nil
		}
		return SMTPConfig{}, fmt.Errorf("invalid manifest: %w", err)
	}

	cfg := SMTPConfig{
		Enabled:     m.Enabled,
		Encrypted:   m.Encrypted,
		Password:    m.Password,
		Port:        m.Port,
		SenderEmail: m.SenderEmail,
		Server:      m.Server,
		User:        m.User,
	}

	recipients, err := decodeRecipients(&m.Recipients)
	if err != nil {
		return SMTPConfig{}, err
	}
	cfg.Recipients = recipients

	return cfg, nil
}

// decodeRecipients reads the recipients node. A zero node means the key was
// missing.
func decodeRecipients(n *yaml.Node) (*string, error) {
	if n.Kind == 0 || n.Tag == "!!null" {
		return nil, nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return String(n.Value), nil
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return nil, fmt.Errorf("invalid manifest: recipients: %w", err)
		}
		return String(strings.Join(list, ",")), nil
	default:
		return nil, fmt.Errorf("invalid manifest: recipients must be a string or a list (line %d)", n.Line)
	}
}
