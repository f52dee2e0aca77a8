package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/smtpsync/internal/config"
	"github.com/muurk/smtpsync/internal/discovery"
	"github.com/muurk/smtpsync/internal/logging"
	"github.com/muurk/smtpsync/internal/ui"
)

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage named connection profiles",
		Long: `Profiles save the connection flags for a device under a name, so that
"--profile NAME" replaces --host, --api-port, --use-ssl, --validate-certs,
--username and --timeout. Passwords are never stored in profiles; use
"smtpsync login --save" to keep them in the system keyring.`,
	}
	cmd.AddCommand(newProfileAddCmd(a), newProfileListCmd(a), newProfileRemoveCmd(a))
	return cmd
}

func newProfileAddCmd(a *app) *cobra.Command {
	var makeDefault bool

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add or replace a profile from the connection flags",
		Example: `  smtpsync profile add lab --host 192.168.1.20 --validate-certs=false
  smtpsync profile add prod --host relay.example.com --username ops --default`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			host := a.v.GetString("host")
			if host == "" {
				return errors.New("--host is required")
			}

			p := config.NewProfile(host)
			p.Port = a.v.GetInt("api-port")
			p.UseSSL = a.v.GetBool("use-ssl")
			p.ValidateCerts = a.v.GetBool("validate-certs")
			p.Username = a.v.GetString("username")
			p.Timeout = int(a.v.GetDuration("timeout") / time.Second)

			registry, err := a.loadRegistry()
			if err != nil {
				return err
			}
			if err := registry.SetProfile(name, p); err != nil {
				return err
			}
			if makeDefault {
				registry.DefaultProfile = name
			}
			if err := registry.Save(); err != nil {
				return err
			}
			logging.Info("Profile saved", zap.String("profile", name), zap.String("host", host))

			if a.format() == formatJSON {
				return writeJSON(a.out, map[string]any{"name": name, "profile": p})
			}
			ui.NewPrinter(a.out).PrintSuccess("profile "+name+" saved", profileRows(name, p, registry.DefaultProfile)...)
			return nil
		},
	}

	cmd.Flags().BoolVar(&makeDefault, "default", false, "Make this the default profile")
	return cmd
}

func newProfileListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := a.loadRegistry()
			if err != nil {
				return err
			}

			if a.format() == formatJSON {
				return writeJSON(a.out, registry)
			}

			names := registry.Names()
			if len(names) == 0 {
				fmt.Fprintln(a.out, "No profiles. Add one with: smtpsync profile add NAME --host HOST")
				return nil
			}
			for _, name := range names {
				marker := "  "
				if name == registry.DefaultProfile {
					marker = "* "
				}
				p := registry.GetProfile(name)
				fmt.Fprintf(a.out, "%s%-16s %s@%s\n", marker, name, p.Username, endpoint(p))
			}
			return nil
		},
	}
}

func newProfileRemoveCmd(a *app) *cobra.Command {
	var keepPassword bool

	cmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a profile and its saved password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			registry, err := a.loadRegistry()
			if err != nil {
				return err
			}
			p := registry.GetProfile(name)
			if !registry.RemoveProfile(name) {
				return fmt.Errorf("profile %q not found", name)
			}
			if err := registry.Save(); err != nil {
				return err
			}

			if !keepPassword {
				if store, err := a.openCredentials(); err != nil {
					logging.Warn("Keyring unavailable, password not removed", zap.Error(err))
				} else if err := store.Delete(p.Host, p.Username); err != nil {
					logging.Warn("Failed to remove saved password", zap.Error(err))
				}
			}

			fmt.Fprintf(a.out, "Profile %s removed\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepPassword, "keep-password", false, "Leave the saved password in the keyring")
	return cmd
}

func endpoint(p *config.Profile) string {
	scheme := "http"
	if p.UseSSL {
		scheme = "https"
	}
	port := ""
	if p.Port != 0 {
		port = ":" + strconv.Itoa(p.Port)
	}
	return scheme + "://" + p.Host + port
}

func profileRows(name string, p *config.Profile, defaultName string) []ui.Detail {
	return []ui.Detail{
		{Key: "Name", Value: name},
		{Key: "Device", Value: endpoint(p)},
		{Key: "User", Value: p.Username},
		{Key: "Verify TLS", Value: strconv.FormatBool(p.ValidateCerts)},
		{Key: "Default", Value: strconv.FormatBool(name == defaultName)},
	}
}

func newScanCmd(a *app) *cobra.Command {
	var (
		wait     time.Duration
		pattern  string
		services []string
	)

	cmd := &cobra.Command{
		Use:   "scan [NAME]",
		Short: "Find devices on the local network with mDNS",
		Long: `Browse the local network for devices advertising an HTTP or HTTPS
management interface and list their addresses. With NAME, look for one
device by instance name or hostname and fail if it does not answer.`,
		Example: `  smtpsync scan
  smtpsync scan --wait 10s --pattern '^relay-'
  smtpsync scan relay-01.local --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner := discovery.NewScanner()
			scanner.Timeout = wait
			if len(services) > 0 {
				scanner.Services = services
			}
			if err := scanner.SetHostPattern(pattern); err != nil {
				return err
			}

			detailed := a.format() != formatJSON
			p := ui.NewPrinter(a.out)
			if detailed {
				p.PrintHeader("Scan for devices", cmd.CommandPath(),
					ui.Detail{Key: "Services", Value: strings.Join(scanner.Services, ", ")},
					ui.Detail{Key: "Wait", Value: wait.String()},
				)
			}

			var devices []*discovery.Device
			if len(args) == 1 {
				device, err := scanner.Find(cmd.Context(), args[0])
				if err != nil {
					if !detailed {
						return err
					}
					p.PrintError("Device not found", err, []string{
						"Check that the device is powered on and on this network segment",
						"mDNS does not cross routers or VPNs; use --host with its IP instead",
						"Try a longer --wait",
					})
					return errReported
				}
				devices = append(devices, device)
			} else {
				var err error
				devices, err = scanner.Scan(cmd.Context())
				if err != nil {
					return fmt.Errorf("scan failed: %w", err)
				}
			}

			if !detailed {
				return writeJSON(a.out, devices)
			}
			return printDevices(p, devices)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", discovery.DefaultScanTimeout, "How long to listen for answers")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Only list devices whose hostname or name matches this regular expression")
	cmd.Flags().StringSliceVar(&services, "service", nil, "Service types to browse (default _https._tcp,_http._tcp)")
	return cmd
}

func printDevices(p *ui.Printer, devices []*discovery.Device) error {
	if len(devices) == 0 {
		p.PrintWarning("no devices found",
			ui.Detail{Key: "Hint", Value: "devices must be on the same network segment"},
			ui.Detail{Key: "Hint", Value: "try a longer --wait"},
		)
		return nil
	}

	for i, d := range devices {
		p.Println(fmt.Sprintf("%d. %s", i+1, d.Name()))
		rows := []ui.Detail{
			{Key: "Hostname", Value: d.Hostname},
			{Key: "URL", Value: d.BaseURL()},
		}
		if api := d.GetMetadata("api"); api != "" {
			rows = append(rows, ui.Detail{Key: "API", Value: api})
		}
		p.Println(ui.RenderTable(rows))
		p.Newline()
	}
	p.Println(fmt.Sprintf("Save one with: smtpsync profile add NAME --host %s --api-port %d --use-ssl=%t",
		devices[0].IP, devices[0].Port, devices[0].UseSSL()))
	return nil
}
