// Package config manages smtpsync's connection profiles.
//
// A profile names a device and how to reach it: host, port, TLS settings,
// username and request timeout. Profiles live in a YAML file that follows OS
// conventions for its location:
//   - Linux: $XDG_CONFIG_HOME/smtpsync/config.yaml or $HOME/.config/smtpsync/config.yaml
//   - macOS: $HOME/.config/smtpsync/config.yaml
//   - Windows: %LOCALAPPDATA%\smtpsync\config.yaml
//
// # Security
//
// IMPORTANT: This package NEVER stores passwords or session tokens. Passwords
// are kept in the system keyring (see internal/credential) or prompted.
//
// # Usage Example
//
//	registry, err := config.Load()
//	if err != nil {
//	    return err
//	}
//
//	p := config.NewProfile("192.168.1.20")
//	p.ValidateCerts = false
//	if err := registry.SetProfile("lab", p); err != nil {
//	    return err
//	}
//
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// Writes go to a temporary file that is then renamed over the real one, and
// file operations are serialized with a mutex.
package config
