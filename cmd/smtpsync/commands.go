package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/muurk/smtpsync/internal/logging"
	"github.com/muurk/smtpsync/internal/session"
	"github.com/muurk/smtpsync/internal/smtpconfig"
	"github.com/muurk/smtpsync/internal/ui"
)

// errReported means the failure was already rendered in a result box
var errReported = &exitCodeError{code: exitFailure}

func newApplyCmd(a *app) *cobra.Command {
	var (
		manifest         string
		check            bool
		keepUnset        bool
		detailedExitcode bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Converge the device's SMTP settings to the given values",
		Long: `Fetch the device's SMTP configuration, compare it with the desired one and
replace it when anything differs.

The desired configuration comes from the field flags, a YAML manifest (-f),
or both; flags override manifest values. Fields that are not given are sent
as null, because the device replaces the whole object. Use --keep-unset to
keep the device's current value for those fields instead.`,
		Example: `  # Point the device at a relay on port 25
  smtpsync apply --host 192.168.1.20 --server smtp.example.com --port 25 --enabled

  # Preview the change only
  smtpsync apply -f smtp.yaml --check

  # Change one field and leave the rest as they are
  smtpsync apply --profile lab --recipients ops@example.com --keep-unset

  # Exit with status 2 when something changed
  smtpsync apply -f smtp.yaml --detailed-exitcode --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			desired, err := desiredConfig(cmd.Flags(), manifest)
			if err != nil {
				return err
			}

			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}
			if err := a.resolvePassword(conn); err != nil {
				return err
			}

			opts := smtpconfig.Options{DryRun: check, KeepUnset: keepUnset}
			res, err := a.reconcile(cmd, conn, desired, opts)
			if err != nil {
				return err
			}

			if detailedExitcode && res.Changed {
				return &exitCodeError{code: exitChanged}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&manifest, "file", "f", "", "YAML manifest with the desired SMTP settings")
	flags.BoolVar(&check, "check", false, "Report what would change without changing it")
	flags.BoolVar(&keepUnset, "keep-unset", false, "Keep the device's value for fields that are not given")
	flags.BoolVar(&detailedExitcode, "detailed-exitcode", false, "Exit with status 2 when the configuration changed (or would change)")
	addFieldFlags(flags)

	return cmd
}

// addFieldFlags registers one flag per SMTP field. Unset flags stay absent.
func addFieldFlags(flags *pflag.FlagSet) {
	flags.Bool("enabled", false, "Enable SMTP notifications")
	flags.Bool("encrypted", false, "Use an encrypted connection to the SMTP server")
	flags.String("password", "", "SMTP server password")
	flags.Int("port", 0, "SMTP server port")
	flags.String("recipients", "", "Comma separated notification recipients")
	flags.String("sender-email", "", "Sender address")
	flags.String("server", "", "SMTP server hostname")
	flags.String("user", "", "SMTP server username")
}

// desiredConfig builds the desired configuration from the manifest and the
// field flags that were set.
func desiredConfig(flags *pflag.FlagSet, manifest string) (smtpconfig.SMTPConfig, error) {
	var desired smtpconfig.SMTPConfig

	given := manifest != ""
	if given {
		cfg, err := smtpconfig.LoadManifest(manifest)
		if err != nil {
			return desired, err
		}
		desired = cfg
	}

	for _, name := range []string{"enabled", "encrypted", "password", "port", "recipients", "sender-email", "server", "user"} {
		if !flags.Changed(name) {
			continue
		}
		given = true
		var err error
		switch name {
		case "enabled":
			desired.Enabled, err = boolFlag(flags, name)
		case "encrypted":
			desired.Encrypted, err = boolFlag(flags, name)
		case "port":
			var port int
			port, err = flags.GetInt(name)
			desired.Port = smtpconfig.Int(port)
		case "password":
			desired.Password, err = stringFlag(flags, name)
		case "recipients":
			desired.Recipients, err = stringFlag(flags, name)
		case "sender-email":
			desired.SenderEmail, err = stringFlag(flags, name)
		case "server":
			desired.Server, err = stringFlag(flags, name)
		case "user":
			desired.User, err = stringFlag(flags, name)
		}
		if err != nil {
			return desired, err
		}
	}

	if !given {
		return desired, errors.New("nothing to apply: give at least one SMTP field flag or a manifest (-f)")
	}
	return desired, nil
}

func boolFlag(flags *pflag.FlagSet, name string) (*bool, error) {
	v, err := flags.GetBool(name)
	if err != nil {
		return nil, err
	}
	return smtpconfig.Bool(v), nil
}

func stringFlag(flags *pflag.FlagSet, name string) (*string, error) {
	v, err := flags.GetString(name)
	if err != nil {
		return nil, err
	}
	return smtpconfig.String(v), nil
}

// reconcile runs a reconciliation and prints its result in the selected format
func (a *app) reconcile(cmd *cobra.Command, conn *connection, desired smtpconfig.SMTPConfig, opts smtpconfig.Options) (*smtpconfig.Result, error) {
	ctx := cmd.Context()
	var res *smtpconfig.Result

	action := func(onStep ui.StepCallback) error {
		return withSession(ctx, conn, onStep, func(client *session.Client) (string, error) {
			var err error
			res, err = smtpconfig.NewReconciler(client).Reconcile(ctx, desired, opts)
			if err != nil {
				return "", err
			}
			return diffNote(res), nil
		})
	}

	if a.format() == formatJSON {
		if err := action(nil); err != nil {
			return nil, err
		}
		return res, writeJSON(a.out, res.Redacted())
	}

	mode := "apply"
	if opts.DryRun {
		mode = "check (dry run)"
	}
	runner := a.newRunner("Apply SMTP configuration", cmd.CommandPath(), conn,
		"Reconcile SMTP configuration", ui.Detail{Key: "Mode", Value: mode})

	_, err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (*ui.Outcome, error) {
		if err := action(onStep); err != nil {
			return nil, err
		}
		return outcomeFor(res, opts.DryRun), nil
	})
	if err != nil {
		return nil, errReported
	}
	return res, nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the device's current SMTP configuration",
		Long: `Fetch and print the device's SMTP configuration. The password is always
masked.`,
		Example: `  smtpsync show --host 192.168.1.20
  smtpsync show --profile lab --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}
			if err := a.resolvePassword(conn); err != nil {
				return err
			}

			ctx := cmd.Context()
			var current smtpconfig.SMTPConfig
			err = withSession(ctx, conn, nil, func(client *session.Client) (string, error) {
				var err error
				current, err = smtpconfig.NewReconciler(client).Fetch(ctx)
				return "", err
			})
			if err != nil {
				return fmt.Errorf("%s: %w", session.ShortMessage(err), err)
			}

			if a.format() == formatJSON {
				return writeJSON(a.out, current.Redacted())
			}

			header := ui.NewHeader("SMTP configuration", cmd.CommandPath(), connectionParams(conn)...)
			return ui.RenderOnce(a.out, header.Render()+"\n\n"+ui.RenderTable(configRows(current)))
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var (
		check bool
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the device's SMTP configuration",
		Long: `Remove the SMTP configuration from the device with DELETE /api/v1/smtp.

You are asked to confirm unless --yes is given. With --check nothing is
removed.`,
		Example: `  smtpsync delete --profile lab
  smtpsync delete --host 192.168.1.20 --yes --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}

			if !check && !yes {
				if a.format() == formatJSON {
					return errors.New("refusing to delete without --yes in json mode")
				}
				confirmed := ui.Confirm(a.in, a.out, ui.Confirmation{
					Title: "DELETE SMTP CONFIGURATION",
					Warnings: []string{
						"All SMTP settings on " + conn.URL() + " will be removed",
						"The device stops sending mail notifications",
					},
					Phrase: "delete",
				})
				if !confirmed {
					return &exitCodeError{code: exitFailure, message: "delete cancelled"}
				}
			}

			if err := a.resolvePassword(conn); err != nil {
				return err
			}

			ctx := cmd.Context()
			var res *smtpconfig.Result
			action := func(onStep ui.StepCallback) error {
				return withSession(ctx, conn, onStep, func(client *session.Client) (string, error) {
					var err error
					res, err = smtpconfig.NewReconciler(client).Delete(ctx, check)
					if err != nil {
						return "", err
					}
					logging.Debug("Delete finished", zap.Bool("changed", res.Changed))
					return diffNote(res), nil
				})
			}

			if a.format() == formatJSON {
				if err := action(nil); err != nil {
					return err
				}
				return writeJSON(a.out, res.Redacted())
			}

			runner := a.newRunner("Delete SMTP configuration", cmd.CommandPath(), conn, "Remove SMTP configuration")
			_, err = runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (*ui.Outcome, error) {
				if err := action(onStep); err != nil {
					return nil, err
				}
				return outcomeFor(res, check), nil
			})
			if err != nil {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Report whether anything would be removed")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check the device credentials",
		Long: `Log in to the device and log out again to check the connection settings
and credentials. With --save the password is stored in the system keyring
for later commands.`,
		Example: `  smtpsync login --host 192.168.1.20 --username admin --save
  smtpsync login --profile lab`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.resolveConnection()
			if err != nil {
				return err
			}
			if err := a.resolvePassword(conn); err != nil {
				return err
			}

			ctx := cmd.Context()
			verify := func(onStep ui.StepCallback) error {
				return withSession(ctx, conn, onStep, func(client *session.Client) (string, error) {
					if !client.Session().Authenticated() {
						return "", errors.New("device accepted the login but returned no token")
					}
					return "token received", nil
				})
			}

			finish := func() (*ui.Outcome, error) {
				outcome := &ui.Outcome{Title: "credentials accepted"}
				if save {
					if err := a.savePassword(conn); err != nil {
						return nil, err
					}
					outcome.Details = append(outcome.Details, ui.Detail{Key: "Keyring", Value: "password saved"})
				}
				return outcome, nil
			}

			if a.format() == formatJSON {
				if err := verify(nil); err != nil {
					return err
				}
				if _, err := finish(); err != nil {
					return err
				}
				return writeJSON(a.out, map[string]any{
					"host":     conn.Host,
					"username": conn.Username,
					"saved":    save,
				})
			}

			runner := a.newRunner("Login", cmd.CommandPath(), conn, "Check session")
			_, err = runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) (*ui.Outcome, error) {
				if err := verify(onStep); err != nil {
					return nil, err
				}
				return finish()
			})
			if err != nil {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Store the password in the system keyring")
	return cmd
}

// savePassword stores the password in the keyring and marks the profile used
func (a *app) savePassword(conn *connection) error {
	store, err := a.openCredentials()
	if err != nil {
		return err
	}
	if err := store.Set(conn.Host, conn.Username, conn.password); err != nil {
		return err
	}

	if conn.Profile == "" {
		return nil
	}
	registry, err := a.loadRegistry()
	if err != nil {
		return err
	}
	registry.MarkUsed(conn.Profile)
	return registry.Save()
}
