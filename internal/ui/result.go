package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Detail is one key/value line of a result box. Details keep their order.
type Detail struct {
	Key   string
	Value string
}

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType
	Title           string   // e.g., "configuration updated"
	Details         []Detail // Key-value details to display
	Error           error    // Error (for failure results)
	Troubleshooting []string // Troubleshooting tips (for failure results)
	Width           int      // Terminal width
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Detail) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details ...Detail) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Detail{Key: key, Value: value})
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := r.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var (
		titleStyle lipgloss.Style
		color      lipgloss.Color
		label      string
	)
	switch r.Type {
	case ResultFailure:
		titleStyle, color, label = ErrorTitleStyle, ErrorColor, FailureMarker+"  FAILED"
	case ResultWarning:
		titleStyle, color, label = WarningTitleStyle, WarningColor, WarningMarker+"  WARNING"
	default:
		titleStyle, color, label = SuccessTitleStyle, SuccessColor, SuccessMarker+"  SUCCESS"
	}

	lines := []string{
		"",
		titleStyle.Render(fmt.Sprintf("   %s  ─  %s", label, r.Title)),
		"",
	}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	for _, d := range r.Details {
		lines = append(lines, renderDetail(d))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if len(r.Troubleshooting) > 0 {
		lines = append(lines, renderTroubleshootingBox(r.Troubleshooting, width), "")
	}

	return boxStyle(width, color).Render(strings.Join(lines, "\n"))
}

func renderDetail(d Detail) string {
	return ResultKeyStyle.Render("   "+d.Key+":") + " " + ResultValueStyle.Render(d.Value)
}

// renderTroubleshootingBox renders the inner troubleshooting box
func renderTroubleshootingBox(tips []string, width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range tips {
		lines = append(lines, TroubleshootingItemStyle.Render("  • "+tip))
	}

	innerWidth := width - 12
	if innerWidth < 40 {
		innerWidth = 40
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(innerWidth).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// Change is one field difference shown by RenderChanges
type Change struct {
	Field  string
	Before string
	After  string
}

// RenderChanges renders field changes as aligned "field  before → after" lines
func RenderChanges(changes []Change) string {
	if len(changes) == 0 {
		return StepPendingStyle.Render("   (no changes)")
	}
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		lines = append(lines, ResultKeyStyle.Render("   "+c.Field)+" "+
			DiffBeforeStyle.Render(c.Before)+
			StepPendingStyle.Render(" → ")+
			DiffAfterStyle.Render(c.After))
	}
	return strings.Join(lines, "\n")
}

// RenderTable renders key/value rows with aligned keys
func RenderTable(rows []Detail) string {
	lines := make([]string, 0, len(rows))
	for _, d := range rows {
		lines = append(lines, renderDetail(d))
	}
	return strings.Join(lines, "\n")
}
