package main

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/muurk/smtpsync/internal/session"
	"github.com/muurk/smtpsync/internal/smtpconfig"
	"github.com/muurk/smtpsync/internal/ui"
)

// writeJSON prints v as indented JSON
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// connectionParams are the header lines describing where a command runs
func connectionParams(conn *connection) []ui.Detail {
	params := []ui.Detail{{Key: "Device", Value: conn.URL()}}
	if conn.Profile != "" {
		params = append(params, ui.Detail{Key: "Profile", Value: conn.Profile})
	}
	params = append(params, ui.Detail{Key: "User", Value: conn.Username})
	if conn.UseSSL && !conn.ValidateCerts {
		params = append(params, ui.Detail{Key: "TLS", Value: "certificate not verified"})
	}
	return params
}

// newRunner creates the step runner for a device command
func (a *app) newRunner(title, command string, conn *connection, action string, extra ...ui.Detail) *ui.Runner {
	return ui.NewRunner(ui.RunnerConfig{
		Title:     title,
		Command:   command,
		Params:    append(connectionParams(conn), extra...),
		StepNames: sessionSteps(action),
		Output:    a.out,
		Hints:     session.TroubleshootingHint,
	})
}

// changesFor converts field changes for display
func changesFor(diff []smtpconfig.FieldChange) []ui.Change {
	changes := make([]ui.Change, len(diff))
	for i, fc := range diff {
		changes[i] = ui.Change{Field: fc.Field, Before: fc.Before, After: fc.After}
	}
	return changes
}

// outcomeFor summarizes a reconciliation for the result box. Dry-run
// changes render as a warning.
func outcomeFor(res *smtpconfig.Result, dryRun bool) *ui.Outcome {
	outcome := &ui.Outcome{
		Title:   res.Message,
		Warning: dryRun && res.Changed,
		Details: []ui.Detail{
			{Key: "Changed", Value: strconv.FormatBool(res.Changed)},
			{Key: "Original", Value: res.Original.String()},
		},
	}
	if res.Changed {
		outcome.Details = append(outcome.Details, ui.Detail{Key: "Fields", Value: strconv.Itoa(len(res.Diff))})
		outcome.Extra = ui.RenderChanges(changesFor(res.Diff))
	}
	return outcome
}

// configRows lists a configuration for RenderTable
func configRows(cfg smtpconfig.SMTPConfig) []ui.Detail {
	display := cfg.Display()
	rows := make([]ui.Detail, len(display))
	for i, kv := range display {
		rows[i] = ui.Detail{Key: kv[0], Value: kv[1]}
	}
	return rows
}

// diffNote is the short step note for a reconciliation
func diffNote(res *smtpconfig.Result) string {
	switch n := len(res.Diff); {
	case !res.Changed:
		return "up to date"
	case n == 1:
		return "1 field differs"
	default:
		return strconv.Itoa(n) + " fields differ"
	}
}
