package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Device represents a REST-managed device found on the local network
type Device struct {
	// Instance is the advertised service instance name (e.g., "Mail Relay")
	Instance string `json:"instance,omitempty"`

	// Hostname is the mDNS hostname (e.g., "relay-01.local.")
	Hostname string `json:"hostname"`

	// IP is the preferred address, IPv4 when available
	IP string `json:"ip"`

	// Port is the advertised service port
	Port int `json:"port"`

	// Service is the service type the device was found under
	Service string `json:"service"`

	// Metadata contains the mDNS TXT record data
	// Common fields: "path=/", "api=/api/v1"
	Metadata map[string]string `json:"metadata,omitempty"`

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time `json:"discovered_at"`
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("%s (%s) at %s", d.Name(), strings.TrimSuffix(d.Hostname, "."), d.Address())
}

// Name returns the instance name, or the short hostname when none was
// advertised
func (d *Device) Name() string {
	if d.Instance != "" {
		return d.Instance
	}
	host := strings.TrimSuffix(d.Hostname, ".")
	return strings.TrimSuffix(host, ".local")
}

// Address returns host:port, bracketing IPv6 addresses
func (d *Device) Address() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// UseSSL reports whether the device is expected to speak HTTPS
func (d *Device) UseSSL() bool {
	return d.Service == HTTPSServiceType || d.Port == 443
}

// BaseURL returns the base URL for the device
func (d *Device) BaseURL() string {
	scheme := "http"
	if d.UseSSL() {
		scheme = "https"
	}
	return scheme + "://" + d.Address()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
