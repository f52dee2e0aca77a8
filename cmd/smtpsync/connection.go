package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/smtpsync/internal/config"
	"github.com/muurk/smtpsync/internal/credential"
	"github.com/muurk/smtpsync/internal/logging"
	"github.com/muurk/smtpsync/internal/session"
	"github.com/muurk/smtpsync/internal/ui"
	"github.com/muurk/smtpsync/internal/version"
)

// connection is the resolved way to reach and log in to one device
type connection struct {
	Profile       string
	Host          string
	Port          int
	UseSSL        bool
	ValidateCerts bool
	Username      string
	Timeout       time.Duration

	// password is resolved separately and never printed
	password string
}

// URL returns the device base URL, for display
func (c *connection) URL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// resolveConnection layers flags, environment and the selected profile.
// Explicit flags win over SMTPSYNC_* variables, which win over the profile.
func (a *app) resolveConnection() (*connection, error) {
	profileName := a.v.GetString("profile")

	registry, err := a.loadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	profile, err := registry.Resolve(profileName)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		if profileName == "" {
			profileName = registry.DefaultProfile
		}
		if err := a.v.MergeConfigMap(profileSettings(profile)); err != nil {
			return nil, fmt.Errorf("failed to apply profile %q: %w", profileName, err)
		}
		logging.Debug("Using profile", zap.String("profile", profileName))
	}

	conn := &connection{
		Profile:       profileName,
		Host:          strings.TrimSpace(a.v.GetString("host")),
		Port:          a.v.GetInt("api-port"),
		UseSSL:        a.v.GetBool("use-ssl"),
		ValidateCerts: a.v.GetBool("validate-certs"),
		Username:      a.v.GetString("username"),
		Timeout:       a.v.GetDuration("timeout"),
	}

	if conn.Host == "" {
		return nil, errors.New("no device given: use --host, SMTPSYNC_HOST or a profile (smtpsync profile add)")
	}
	if conn.Port == 0 {
		conn.Port = 80
		if conn.UseSSL {
			conn.Port = 443
		}
	}
	if conn.Timeout <= 0 {
		conn.Timeout = session.DefaultTimeout
	}

	return conn, nil
}

// profileSettings maps a profile onto the flag names it provides values for
func profileSettings(p *config.Profile) map[string]any {
	settings := map[string]any{
		"host":           p.Host,
		"use-ssl":        p.UseSSL,
		"validate-certs": p.ValidateCerts,
	}
	if p.Port != 0 {
		settings["api-port"] = p.Port
	}
	if p.Username != "" {
		settings["username"] = p.Username
	}
	if p.Timeout > 0 {
		settings["timeout"] = time.Duration(p.Timeout) * time.Second
	}
	return settings
}

// resolvePassword finds the device password: flag or environment first,
// then the keyring, then an interactive prompt.
func (a *app) resolvePassword(conn *connection) error {
	if pw := a.v.GetString("api-password"); pw != "" {
		conn.password = pw
		return nil
	}

	if store, err := a.openCredentials(); err != nil {
		logging.Debug("Keyring unavailable", zap.Error(err))
	} else {
		pw, err := store.Get(conn.Host, conn.Username)
		switch {
		case err == nil:
			conn.password = pw
			logging.Debug("Using password from keyring", zap.String("user", conn.Username))
			return nil
		case !errors.Is(err, credential.ErrNotFound):
			logging.Warn("Keyring lookup failed", zap.Error(err))
		}
	}

	pw, err := a.readPassword(fmt.Sprintf("Password for %s@%s: ", conn.Username, conn.Host))
	if err != nil {
		return fmt.Errorf("device password required (--api-password, SMTPSYNC_API_PASSWORD or smtpsync login --save): %w", err)
	}
	conn.password = pw
	return nil
}

// newClient builds a session client for conn
func newClient(conn *connection) (*session.Client, error) {
	return session.NewClient(conn.Host, conn.Port,
		session.WithTLS(conn.UseSSL),
		session.WithValidateCerts(conn.ValidateCerts),
		session.WithTimeout(conn.Timeout),
		session.WithUserAgent(version.UserAgent()),
	)
}

// Session steps reported through a ui.StepCallback
const (
	stepLogin = iota + 1
	stepAction
	stepLogout
)

// sessionSteps names the steps for a command whose action is action
func sessionSteps(action string) []string {
	return []string{"Log in", action, "Log out"}
}

// withSession logs in, runs fn and logs out, reporting each step. fn returns
// a short note for its step. A failed logout is logged but does not fail
// the command once fn has succeeded.
func withSession(ctx context.Context, conn *connection, onStep ui.StepCallback, fn func(*session.Client) (string, error)) error {
	if onStep == nil {
		onStep = func(int, ui.StepStatus, string) {}
	}

	client, err := newClient(conn)
	if err != nil {
		return err
	}

	onStep(stepLogin, ui.StepRunning, "")
	if err := client.Login(ctx, conn.Username, conn.password); err != nil {
		onStep(stepLogin, ui.StepFailed, session.ShortMessage(err))
		return err
	}
	onStep(stepLogin, ui.StepComplete, conn.Username)
	logging.Debug("Logged in", zap.String("device", conn.URL()))

	onStep(stepAction, ui.StepRunning, "")
	note, fnErr := fn(client)
	if fnErr != nil {
		onStep(stepAction, ui.StepFailed, session.ShortMessage(fnErr))
	} else {
		onStep(stepAction, ui.StepComplete, note)
	}

	onStep(stepLogout, ui.StepRunning, "")
	if _, err := client.Logout(ctx); err != nil {
		logging.Warn("Logout failed", zap.Error(err))
		onStep(stepLogout, ui.StepSkipped, "logout failed")
	} else {
		onStep(stepLogout, ui.StepComplete, "")
	}
	return fnErr
}
