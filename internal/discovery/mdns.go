package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/smtpsync/internal/logging"
)

const (
	// HTTPServiceType is the mDNS service type for plain HTTP management APIs
	HTTPServiceType = "_http._tcp"

	// HTTPSServiceType is the mDNS service type for TLS management APIs
	HTTPSServiceType = "_https._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 5 * time.Second
)

// defaultPorts is used when an entry advertises port 0
var defaultPorts = map[string]int{
	HTTPServiceType:  80,
	HTTPSServiceType: 443,
}

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration

	// Services lists the service types to browse
	Services []string

	// HostPattern, when set, keeps only devices whose hostname or instance
	// name matches
	HostPattern *regexp.Regexp
}

// NewScanner creates a new mDNS scanner browsing both HTTP and HTTPS services
func NewScanner() *Scanner {
	return &Scanner{
		Timeout:  DefaultScanTimeout,
		Services: []string{HTTPSServiceType, HTTPServiceType},
	}
}

// SetHostPattern compiles and sets the hostname filter. An empty pattern
// clears it.
func (s *Scanner) SetHostPattern(pattern string) error {
	if pattern == "" {
		s.HostPattern = nil
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid host pattern: %w", err)
	}
	s.HostPattern = re
	return nil
}

// Scan discovers devices until the timeout or ctx expires. Devices are
// returned sorted by name, one entry per address.
func (s *Scanner) Scan(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(map[string]*Device)
	results := make(chan []*Device, len(s.Services))

	for _, service := range s.Services {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
		}

		entries := make(chan *zeroconf.ServiceEntry)
		go func(service string) {
			var devices []*Device
			// The resolver closes entries once ctx is done
			for entry := range entries {
				if device := s.parseServiceEntry(service, entry); device != nil {
					devices = append(devices, device)
				}
			}
			results <- devices
		}(service)

		if err := resolver.Browse(ctx, service, ServiceDomain, entries); err != nil {
			return nil, fmt.Errorf("failed to browse for %s services: %w", service, err)
		}
		logging.Debug("Browsing for devices", zap.String("service", service))
	}

	for range s.Services {
		select {
		case devices := <-results:
			for _, d := range devices {
				found[d.Address()] = d
			}
		case <-time.After(s.Timeout + time.Second):
			logging.Warn("mDNS browse did not finish in time")
		}
	}

	devices := make([]*Device, 0, len(found))
	for _, d := range found {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name() != devices[j].Name() {
			return devices[i].Name() < devices[j].Name()
		}
		return devices[i].Address() < devices[j].Address()
	})

	logging.Debug("Scan complete", zap.Int("devices", len(devices)))
	return devices, nil
}

// Find scans and returns the first device whose instance name or hostname
// equals name, ignoring case and the ".local." suffix.
func (s *Scanner) Find(ctx context.Context, name string) (*Device, error) {
	devices, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	want := normalizeName(name)
	for _, d := range devices {
		if normalizeName(d.Instance) == want || normalizeName(d.Hostname) == want {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %s not found within %s", name, s.Timeout)
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	return strings.TrimSuffix(name, ".local")
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil if the entry has no address or does not match HostPattern.
func (s *Scanner) parseServiceEntry(service string, entry *zeroconf.ServiceEntry) *Device {
	hostname := entry.HostName
	if hostname == "" {
		return nil
	}

	if s.HostPattern != nil &&
		!s.HostPattern.MatchString(hostname) &&
		!s.HostPattern.MatchString(entry.Instance) {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = defaultPorts[service]
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Device{
		Instance:     entry.Instance,
		Hostname:     hostname,
		IP:           ip,
		Port:         port,
		Service:      service,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
