package smtpconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/smtpsync/internal/logging"
	"github.com/muurk/smtpsync/internal/session"
)

// SMTPPath is the device resource holding the SMTP settings
const SMTPPath = "/api/v1/smtp"

// Result messages
const (
	MessageUpToDate    = "configuration is already up to date"
	MessageUpdated     = "configuration updated"
	MessageWouldUpdate = "configuration would be updated"
	MessageRemoved     = "configuration removed"
	MessageWouldRemove = "configuration would be removed"
	MessageAbsent      = "configuration is already absent"
)

// API is the subset of the session client the Reconciler needs.
// *session.Client satisfies it.
type API interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}

// Options controls a reconciliation
type Options struct {
	// DryRun reports the change without sending it
	DryRun bool

	// KeepUnset fills absent desired fields from the current configuration
	// before comparing, so they are left as they are on the device.
	KeepUnset bool
}

// Result describes the outcome of a reconciliation
type Result struct {
	Changed  bool          `json:"changed"`
	Original SMTPConfig    `json:"original"`
	Desired  SMTPConfig    `json:"desired"`
	Message  string        `json:"message"`
	Diff     []FieldChange `json:"diff,omitempty"`
}

// Redacted returns a copy safe to print or encode
func (r *Result) Redacted() *Result {
	out := *r
	out.Original = r.Original.Redacted()
	out.Desired = r.Desired.Redacted()
	return &out
}

// Reconciler converges the device's SMTP configuration to a desired state
type Reconciler struct {
	api API
}

// NewReconciler creates a Reconciler using api for all device calls
func NewReconciler(api API) *Reconciler {
	return &Reconciler{api: api}
}

// Fetch returns the device's current SMTP configuration
func (r *Reconciler) Fetch(ctx context.Context) (SMTPConfig, error) {
	raw, err := r.api.Get(ctx, SMTPPath)
	if err != nil {
		return SMTPConfig{}, err
	}
	return decodeConfig(raw)
}

// Reconcile fetches the current configuration, compares it with desired and
// issues a single PUT of the full desired object when they differ.
func (r *Reconciler) Reconcile(ctx context.Context, desired SMTPConfig, opts Options) (*Result, error) {
	original, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if opts.KeepUnset {
		desired = MergeUnset(original, desired)
	}

	result := &Result{
		Original: original,
		Desired:  desired,
	}

	if original.Equal(desired) {
		result.Message = MessageUpToDate
		logging.Debug("SMTP configuration unchanged", zap.Object("current", original))
		return result, nil
	}

	result.Changed = true
	result.Diff = Diff(original, desired)

	if opts.DryRun {
		result.Message = MessageWouldUpdate
		logging.Info("SMTP configuration would change",
			zap.String("diff", FormatDiff(result.Diff)))
		return result, nil
	}

	if _, err := r.api.Put(ctx, SMTPPath, desired); err != nil {
		return nil, err
	}

	result.Message = MessageUpdated
	logging.Info("SMTP configuration updated",
		zap.String("diff", FormatDiff(result.Diff)))
	return result, nil
}

// Delete removes the device's SMTP configuration. An already empty
// configuration is left alone and reported as unchanged.
func (r *Reconciler) Delete(ctx context.Context, dryRun bool) (*Result, error) {
	original, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Original: original}
	if original.IsEmpty() {
		result.Message = MessageAbsent
		return result, nil
	}

	result.Changed = true
	result.Diff = Diff(original, SMTPConfig{})

	if dryRun {
		result.Message = MessageWouldRemove
		return result, nil
	}

	if _, err := r.api.Delete(ctx, SMTPPath); err != nil {
		return nil, err
	}

	result.Message = MessageRemoved
	logging.Info("SMTP configuration removed")
	return result, nil
}

// decodeConfig parses a GET response. A null body is an empty configuration.
func decodeConfig(raw json.RawMessage) (SMTPConfig, error) {
	var cfg SMTPConfig
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return SMTPConfig{}, &session.Error{
			Kind:    session.KindDecode,
			Method:  http.MethodGet,
			Path:    SMTPPath,
			Message: fmt.Sprintf("unexpected SMTP configuration shape: %v", err),
			Err:     err,
		}
	}
	return cfg, nil
}
