package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig describes a command run with step-by-step progress
type RunnerConfig struct {
	Title     string   // e.g., "Apply SMTP configuration"
	Command   string   // e.g., "smtpsync apply --check"
	Params    []Detail // Shown in the header
	StepNames []string // One entry per step, in order
	Output    io.Writer

	// Hints returns troubleshooting tips for a failure. May be nil.
	Hints func(error) []string
}

// Runner prints a header, then each step as it finishes, then a result box
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
}

// Outcome is what an operation reports on success
type Outcome struct {
	Title   string
	Warning bool // Rendered as a warning box, e.g. for dry runs
	Details []Detail
	Extra   string // Printed inside the box after the details
}

// Operation is the work a Runner executes
type Operation func(ctx context.Context, onStep StepCallback) (*Outcome, error)

// NewRunner creates a Runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	width := GetTerminalWidth()

	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params...).SetWidth(width),
		progress: NewProgress(config.StepNames...).SetWidth(width),
		output:   config.Output,
		width:    width,
	}
}

// SetWidth overrides the detected terminal width
func (r *Runner) SetWidth(width int) *Runner {
	r.width = width
	r.header.SetWidth(width)
	r.progress.SetWidth(width)
	return r
}

// Progress returns the step tracker
func (r *Runner) Progress() *Progress {
	return r.progress
}

// Run executes operation, rendering progress and the final result
func (r *Runner) Run(ctx context.Context, operation Operation) (*Outcome, error) {
	start := time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	outcome, err := operation(ctx, r.onStep)
	duration := time.Since(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.output)
	if err != nil {
		r.printFailure(err)
		return nil, err
	}
	r.printOutcome(outcome, duration)
	return outcome, nil
}

func (r *Runner) onStep(stepNumber int, status StepStatus, message string) {
	r.progress.Update(stepNumber, status, message)
	if stepNumber < 1 || stepNumber > r.progress.Total() {
		return
	}
	line := r.progress.RenderStep(r.progress.Steps[stepNumber-1])
	if status == StepRunning {
		// Overwritten when the step finishes
		_, _ = fmt.Fprint(r.output, line+"\r")
		return
	}
	_, _ = fmt.Fprintln(r.output, line)
}

func (r *Runner) printOutcome(outcome *Outcome, duration time.Duration) {
	if outcome == nil {
		outcome = &Outcome{Title: r.config.Title + " complete"}
	}

	var result *Result
	if outcome.Warning {
		result = NewWarningResult(outcome.Title, outcome.Details...)
	} else {
		result = NewSuccessResult(outcome.Title, outcome.Details...)
	}
	result.AddDetail("Duration", duration.String())
	result.SetWidth(r.width)

	_, _ = fmt.Fprintln(r.output, result.Render())
	if outcome.Extra != "" {
		_, _ = fmt.Fprintln(r.output)
		_, _ = fmt.Fprintln(r.output, outcome.Extra)
	}
}

func (r *Runner) printFailure(err error) {
	var hints []string
	if r.config.Hints != nil {
		hints = r.config.Hints(err)
	}
	result := NewFailureResult(r.config.Title+" failed", err, hints)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())
}
