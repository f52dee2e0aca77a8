// Package credential keeps device passwords in the system keyring so they
// never have to be written to the profile file or passed on the command line.
package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/muurk/smtpsync/internal/config"
)

const serviceName = "smtpsync"

// ErrNotFound is returned when no password is stored for a device
var ErrNotFound = errors.New("credential not found")

// Store reads and writes device passwords
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps an already opened keyring
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open returns a Store backed by the system keyring. The encrypted file
// backend is the last resort and prompts for its passphrase.
func Open() (*Store, error) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return nil, err
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.TerminalPrompt,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// Key identifies the password for username on host
func Key(host, username string) string {
	return username + "@" + host
}

// Get retrieves the password for username on host
func (s *Store) Get(host, username string) (string, error) {
	key := Key(host, username)
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores the password for username on host
func (s *Store) Set(host, username, password string) error {
	key := Key(host, username)
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(password),
		Label:       "smtpsync " + key,
		Description: "device password",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes the password for username on host. Deleting a password
// that is not stored is not an error.
func (s *Store) Delete(host, username string) error {
	key := Key(host, username)
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
