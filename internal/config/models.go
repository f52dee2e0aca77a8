package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Default connection settings
const (
	DefaultPort     = 443
	DefaultUsername = "admin"
)

// Registry represents the entire user configuration file.
// It stores named connection profiles and which one is used by default.
type Registry struct {
	Version        int                 `json:"version" yaml:"version"`
	DefaultProfile string              `json:"default_profile,omitempty" yaml:"default_profile,omitempty"`
	Profiles       map[string]*Profile `json:"profiles,omitempty" yaml:"profiles,omitempty"` // Keyed by profile name
}

// Profile holds the connection settings for one device.
// Note: Passwords are NEVER stored here. See internal/credential.
type Profile struct {
	Host          string    `json:"host" yaml:"host"`
	Port          int       `json:"port,omitempty" yaml:"port,omitempty"`
	UseSSL        bool      `json:"use_ssl" yaml:"use_ssl"`
	ValidateCerts bool      `json:"validate_certs" yaml:"validate_certs"`
	Username      string    `json:"username,omitempty" yaml:"username,omitempty"`
	Timeout       int       `json:"timeout,omitempty" yaml:"timeout,omitempty"`     // Seconds; 0 means client default
	LastUsed      time.Time `json:"last_used,omitempty" yaml:"last_used,omitempty"` // Last successful login
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:  1,
		Profiles: make(map[string]*Profile),
	}
}

// NewProfile returns a profile for host with default settings
func NewProfile(host string) *Profile {
	return &Profile{
		Host:          host,
		Port:          DefaultPort,
		UseSSL:        true,
		ValidateCerts: true,
		Username:      DefaultUsername,
	}
}

// Validate checks that the profile can be used to connect
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("invalid port %d", p.Port)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("invalid timeout %d", p.Timeout)
	}
	return nil
}

// GetProfile retrieves a profile by name.
// Returns nil if the profile doesn't exist in the registry.
func (r *Registry) GetProfile(name string) *Profile {
	return r.Profiles[name]
}

// SetProfile adds or replaces a profile. The first profile added becomes the
// default.
func (r *Registry) SetProfile(name string, p *Profile) error {
	if name == "" {
		return fmt.Errorf("profile name is required")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	if r.Profiles == nil {
		r.Profiles = make(map[string]*Profile)
	}
	r.Profiles[name] = p
	if r.DefaultProfile == "" {
		r.DefaultProfile = name
	}
	return nil
}

// RemoveProfile deletes a profile. Removing the default profile clears the
// default. Reports whether the profile existed.
func (r *Registry) RemoveProfile(name string) bool {
	if _, ok := r.Profiles[name]; !ok {
		return false
	}
	delete(r.Profiles, name)
	if r.DefaultProfile == name {
		r.DefaultProfile = ""
	}
	return true
}

// Resolve returns the named profile, or the default profile when name is
// empty. A nil profile with no error means nothing is configured.
func (r *Registry) Resolve(name string) (*Profile, error) {
	if name == "" {
		name = r.DefaultProfile
		if name == "" {
			return nil, nil
		}
	}
	p := r.GetProfile(name)
	if p == nil {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}

// MarkUsed records a successful connection with the profile
func (r *Registry) MarkUsed(name string) {
	if p := r.GetProfile(name); p != nil {
		p.LastUsed = time.Now()
	}
}

// Names returns the profile names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Profiles))
	for name := range r.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
