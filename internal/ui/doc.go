// Package ui provides terminal UI components for the smtpsync CLI.
//
// Components use Lipgloss for styling and follow a "run once and exit"
// pattern: output is polished but never interactive, apart from the
// confirmation prompt guarding destructive commands.
//
//   - Header: command banner showing operation name and parameters
//   - Progress: progress bar with a step list (login, fetch, compare, apply)
//   - Result: success, warning and failure boxes with ordered details
//   - RenderChanges and RenderTable: field diffs and configuration tables
//
// A Runner ties these together for one command:
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Apply SMTP configuration",
//	    Command:   "smtpsync apply",
//	    Params:    []ui.Detail{{Key: "Device", Value: baseURL}},
//	    StepNames: []string{"Log in", "Fetch current", "Compare", "Apply", "Log out"},
//	    Hints:     session.TroubleshootingHint,
//	})
//
//	outcome, err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (*ui.Outcome, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, ui.StepComplete, "")
//	    return &ui.Outcome{Title: "configuration updated"}, nil
//	})
//
// # Logging Integration
//
// zap logging stays silent unless SMTPSYNC_LOG_LEVEL or --log-level is set,
// so log lines on stderr do not interleave with this output.
package ui
