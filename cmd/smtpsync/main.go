// Smtpsync converges the SMTP settings of REST-managed devices.
//
// It logs in to the device's management API, compares the SMTP
// configuration with the desired one and replaces it when they differ. A
// dry run (--check) reports the change without making it.
//
// Usage:
//
//	smtpsync [command] [flags]
//
// See 'smtpsync --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/smtpsync/internal/config"
	"github.com/muurk/smtpsync/internal/credential"
	"github.com/muurk/smtpsync/internal/logging"
	"github.com/muurk/smtpsync/internal/version"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitChanged = 2
)

// Output formats
const (
	formatDetailed = "detailed"
	formatJSON     = "json"
)

// exitCodeError ends the process with a specific status. An empty message
// means the result has already been printed.
type exitCodeError struct {
	code    int
	message string
}

func (e *exitCodeError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.message
}

// app carries what commands share: settings, streams and the stores they
// read from.
type app struct {
	v      *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	openCredentials func() (*credential.Store, error)
	loadRegistry    func() (*config.Registry, error)
	readPassword    func(prompt string) (string, error)
}

func newApp() *app {
	return &app{
		v:               viper.New(),
		in:              os.Stdin,
		out:             os.Stdout,
		errOut:          os.Stderr,
		openCredentials: credential.Open,
		loadRegistry:    config.Load,
		readPassword:    promptPassword,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newApp(), os.Args[1:])
	stop()
	logging.Sync()
	os.Exit(code)
}

// run executes the command line and maps the outcome to an exit code
func run(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		if exitErr.message != "" {
			fmt.Fprintf(a.errOut, "Error: %s\n", exitErr.message)
		}
		return exitErr.code
	}

	fmt.Fprintf(a.errOut, "Error: %v\n", err)
	return exitFailure
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "smtpsync",
		Short: "Keep device SMTP settings in their desired state",
		Long: `smtpsync manages the SMTP settings of devices that expose a REST
management API at /api/v1.

It logs in, fetches /api/v1/smtp, compares it with the desired settings and
replaces the whole object with one PUT when anything differs. Use --check to
see what would change without changing it.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.String("host", "", "Device hostname or IP address")
	flags.Int("api-port", 0, "Device API port (default 443 with TLS, 80 without)")
	flags.Bool("use-ssl", true, "Connect with HTTPS")
	flags.Bool("validate-certs", true, "Verify the device's TLS certificate")
	flags.String("username", config.DefaultUsername, "Device login username")
	flags.String("api-password", "", "Device login password (prefer the keyring or SMTPSYNC_API_PASSWORD)")
	flags.String("profile", "", "Connection profile to use (default: the registry's default profile)")
	flags.Duration("timeout", 0, "HTTP request timeout (default 30s)")
	flags.String("log-level", "", "Log level on stderr: debug, info, warn, error (default: silent)")
	flags.String("format", formatDetailed, "Output format: detailed, json")

	if err := a.v.BindPFlags(flags); err != nil {
		panic(err)
	}
	a.v.SetEnvPrefix("SMTPSYNC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newApplyCmd(a),
		newShowCmd(a),
		newDeleteCmd(a),
		newLoginCmd(a),
		newScanCmd(a),
		newProfileCmd(a),
		newVersionCmd(a),
	)
	return root
}

// initialize sets up logging and validates shared flags
func (a *app) initialize(cmd *cobra.Command) error {
	if err := logging.Initialize(a.v.GetString("log-level")); err != nil {
		return err
	}
	runID := logging.WithRunID()
	logging.Debug("Starting command", zap.String("command", cmd.CommandPath()), zap.String("run_id", runID))

	switch a.format() {
	case formatDetailed, formatJSON:
		return nil
	default:
		return fmt.Errorf("unknown --format %q (expected detailed or json)", a.v.GetString("format"))
	}
}

func (a *app) format() string {
	return strings.ToLower(a.v.GetString("format"))
}

// promptPassword reads a password from the terminal without echo
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal to prompt for a password")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.format() == formatJSON {
				return writeJSON(a.out, version.Get())
			}
			fmt.Fprintf(a.out, "smtpsync %s\n", version.Full())
			return nil
		},
	}
}
