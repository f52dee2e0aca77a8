package smtpconfig

import (
	"fmt"
	"strings"
)

// unsetValue is how an absent field is shown in a diff
const unsetValue = "(unset)"

// FieldChange describes one field that differs between two configurations.
// Before and After are display strings; the password is always masked.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// String renders the change as "field: before -> after"
func (fc FieldChange) String() string {
	return fmt.Sprintf("%s: %s -> %s", fc.Field, fc.Before, fc.After)
}

// Diff compares current with desired and lists every differing field in
// wire order. It agrees with Equal: Diff is empty exactly when Equal is true.
func Diff(current, desired SMTPConfig) []FieldChange {
	var changes []FieldChange

	add := func(name string, same bool, before, after field) {
		if same {
			return
		}
		changes = append(changes, FieldChange{
			Field:  name,
			Before: displayValue(before),
			After:  displayValue(after),
		})
	}

	cur := current.fields()
	des := desired.fields()

	add("enabled", eqPtr(current.Enabled, desired.Enabled), cur[0], des[0])
	add("encrypted", eqPtr(current.Encrypted, desired.Encrypted), cur[1], des[1])
	add("password", eqPtr(current.Password, desired.Password), cur[2], des[2])
	add("port", eqPtr(current.Port, desired.Port), cur[3], des[3])
	add("recipients", eqPtr(current.Recipients, desired.Recipients), cur[4], des[4])
	add("sender_email", eqPtr(current.SenderEmail, desired.SenderEmail), cur[5], des[5])
	add("server", eqPtr(current.Server, desired.Server), cur[6], des[6])
	add("user", eqPtr(current.User, desired.User), cur[7], des[7])

	return changes
}

func displayValue(f field) string {
	if !f.set {
		return unsetValue
	}
	return f.value
}

// FormatDiff creates a human-readable summary of changes
func FormatDiff(changes []FieldChange) string {
	if len(changes) == 0 {
		return "none"
	}
	if len(changes) == 1 {
		return changes[0].String()
	}
	parts := make([]string, len(changes))
	for i, c := range changes {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%d changes: %s", len(changes), strings.Join(parts, "; "))
}
