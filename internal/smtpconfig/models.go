package smtpconfig

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Redacted is what a password is replaced with in any output
const Redacted = "********"

// SMTPConfig is the SMTP resource as the device stores it. The same shape
// describes both the desired and the actual configuration.
//
// Fields have no omitempty: an absent field is serialized as null so that a
// PUT always carries the full object.
type SMTPConfig struct {
	Enabled     *bool   `json:"enabled" yaml:"enabled,omitempty"`
	Encrypted   *bool   `json:"encrypted" yaml:"encrypted,omitempty"`
	Password    *string `json:"password" yaml:"password,omitempty"`
	Port        *int    `json:"port" yaml:"port,omitempty"`
	Recipients  *string `json:"recipients" yaml:"recipients,omitempty"`
	SenderEmail *string `json:"sender_email" yaml:"sender_email,omitempty"`
	Server      *string `json:"server" yaml:"server,omitempty"`
	User        *string `json:"user" yaml:"user,omitempty"`
}

// Bool returns a pointer to v
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }

// Equal reports full structural equality: every field must be absent on both
// sides or present with the same value on both sides.
func (c SMTPConfig) Equal(other SMTPConfig) bool {
	return eqPtr(c.Enabled, other.Enabled) &&
		eqPtr(c.Encrypted, other.Encrypted) &&
		eqPtr(c.Password, other.Password) &&
		eqPtr(c.Port, other.Port) &&
		eqPtr(c.Recipients, other.Recipients) &&
		eqPtr(c.SenderEmail, other.SenderEmail) &&
		eqPtr(c.Server, other.Server) &&
		eqPtr(c.User, other.User)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IsEmpty reports whether every field is absent
func (c SMTPConfig) IsEmpty() bool {
	return c.Equal(SMTPConfig{})
}

// Redacted returns a copy with the password masked. An absent password stays
// absent.
func (c SMTPConfig) Redacted() SMTPConfig {
	if c.Password != nil {
		c.Password = String(Redacted)
	}
	return c
}

// MergeUnset returns desired with every absent field filled from current.
// This turns the full-replace PUT into an update of only the fields the
// caller set.
func MergeUnset(current, desired SMTPConfig) SMTPConfig {
	merged := desired
	if merged.Enabled == nil {
		merged.Enabled = current.Enabled
	}
	if merged.Encrypted == nil {
		merged.Encrypted = current.Encrypted
	}
	if merged.Password == nil {
		merged.Password = current.Password
	}
	if merged.Port == nil {
		merged.Port = current.Port
	}
	if merged.Recipients == nil {
		merged.Recipients = current.Recipients
	}
	if merged.SenderEmail == nil {
		merged.SenderEmail = current.SenderEmail
	}
	if merged.Server == nil {
		merged.Server = current.Server
	}
	if merged.User == nil {
		merged.User = current.User
	}
	return merged
}

// field is one named, display-formatted SMTPConfig field
type field struct {
	name   string
	value  string
	set    bool
	secret bool
}

// fields lists the configuration in wire order
func (c SMTPConfig) fields() []field {
	return []field{
		boolField("enabled", c.Enabled),
		boolField("encrypted", c.Encrypted),
		stringField("password", c.Password, true),
		intField("port", c.Port),
		stringField("recipients", c.Recipients, false),
		stringField("sender_email", c.SenderEmail, false),
		stringField("server", c.Server, false),
		stringField("user", c.User, false),
	}
}

func boolField(name string, v *bool) field {
	if v == nil {
		return field{name: name}
	}
	return field{name: name, value: strconv.FormatBool(*v), set: true}
}

func intField(name string, v *int) field {
	if v == nil {
		return field{name: name}
	}
	return field{name: name, value: strconv.Itoa(*v), set: true}
}

func stringField(name string, v *string, secret bool) field {
	if v == nil {
		return field{name: name, secret: secret}
	}
	if secret {
		return field{name: name, value: Redacted, set: true, secret: true}
	}
	return field{name: name, value: strconv.Quote(*v), set: true}
}

// String returns a one-line summary with the password masked
func (c SMTPConfig) String() string {
	parts := make([]string, 0, 8)
	for _, f := range c.fields() {
		if f.set {
			parts = append(parts, f.name+"="+f.value)
		}
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Display returns name/value pairs for every field, with "(unset)" for
// absent ones and the password masked.
func (c SMTPConfig) Display() [][2]string {
	out := make([][2]string, 0, 8)
	for _, f := range c.fields() {
		v := f.value
		if !f.set {
			v = "(unset)"
		}
		out = append(out, [2]string{f.name, v})
	}
	return out
}

// MarshalLogObject implements zapcore.ObjectMarshaler without the password
func (c SMTPConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for _, f := range c.fields() {
		if !f.set {
			continue
		}
		if f.secret {
			enc.AddBool("password_set", true)
			continue
		}
		enc.AddString(f.name, f.value)
	}
	return nil
}

// GoString keeps %#v from printing the password
func (c SMTPConfig) GoString() string {
	return fmt.Sprintf("smtpconfig.SMTPConfig%s", c.String())
}
