package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mikey/exodetect/internal/adapters/frontend"
	"github.com/mikey/exodetect/internal/core"
	"github.com/mikey/exodetect/internal/di"
	"github.com/mikey/exodetect/internal/factory"
	"github.com/mikey/exodetect/internal/ports"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// build-time override (e.g. -ldflags "-X main.version=1.2.3")
var version = "dev"

var flags di.CLIFlags

func main() {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root Cobra command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exodetect",
		Short: "Exoplanet transit analysis client",
		Long: strings.TrimSpace(`
exodetect - Exoplanet transit analysis client

Submits stars to the analysis backend, keeps every result of the session in
memory and renders them as a dashboard or as a single detailed result.`),
		Version: version,
	}

	cmd.PersistentFlags().StringVarP(&flags.ConfigFile, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&flags.BaseURL, "backend", "", "Analysis backend base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.StoreType, "store", "", "Credential store: file|sqlite|mysql|memory (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.StorePath, "store-path", "", "Credential file or SQLite database path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	cmd.PersistentFlags().StringVar(&flags.LogFile, "log-file", "", "Also write logs to this rotated file")

	cmd.AddCommand(newShellCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newWhoamiCmd())

	return cmd
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(cmd.Context(), func(ctx context.Context, d deps) error {
				d.restore(ctx)
				var secret frontend.PasswordReader
				if term.IsTerminal(int(os.Stdin.Fd())) {
					secret = readPassword
				}
				return runFrontend(ctx, d.Frontends.CreateShell(os.Stdin, os.Stdout, secret))
			})
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var examples, detail bool
	c := &cobra.Command{
		Use:   "analyze [target...]",
		Short: "Analyse targets and print the dashboard",
		Long: strings.TrimSpace(`
Analyse one or more targets, spaced out to spare the backend, and print the
resulting dashboard. Quote targets containing spaces.

Examples:
  exodetect analyze Kepler-10 "Pi Mensae"
  exodetect analyze --examples
  exodetect analyze --detail Kepler-90
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := args
			if examples {
				targets = append(targets, frontend.QuickTargetIDs()...)
			}
			if len(targets) == 0 {
				return errors.New("no targets given; pass targets or --examples")
			}
			return invoke(cmd.Context(), func(ctx context.Context, d deps) error {
				if !d.restore(ctx) {
					return errors.New("not logged in; run 'exodetect login <username>' first")
				}
				return runFrontend(ctx, d.Frontends.CreateBatchRunner(os.Stdout, targets, detail))
			})
		},
	}
	c.Flags().BoolVar(&examples, "examples", false, "Also analyse the built-in example targets")
	c.Flags().BoolVar(&detail, "detail", false, "Print the detailed view when analysing a single target")
	return c
}

func newLoginCmd() *cobra.Command {
	var passwordStdin bool
	c := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(cmd.Context(), func(ctx context.Context, d deps) error {
				var password string
				var err error
				if passwordStdin {
					password, err = readLine(os.Stdin)
				} else {
					fmt.Fprint(os.Stderr, "Password: ")
					password, err = readPassword()
					fmt.Fprintln(os.Stderr)
				}
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}

				if err := d.Session.Authenticate(ctx, args[0], password); err != nil {
					d.Logger.Debug("Login failed", zap.Error(err))
					return errors.New(core.UserMessage(err))
				}
				cred, _ := d.Session.Current()
				fmt.Printf("Logged in as %s.\n", cred.DisplayName)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return c
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(cmd.Context(), func(ctx context.Context, d deps) error {
				d.restore(ctx)
				d.Session.Logout(ctx)
				fmt.Println("Logged out.")
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(cmd.Context(), func(ctx context.Context, d deps) error {
				d.restore(ctx)
				d.Frontends.CreateRenderer(os.Stdout).Status(d.Status.Status(ctx))
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(cmd.Context(), func(ctx context.Context, d deps) error {
				if !d.restore(ctx) {
					fmt.Println("Not logged in.")
					return nil
				}
				cred, _ := d.Session.Current()
				fmt.Println(cred.DisplayName)
				return nil
			})
		},
	}
}

// deps is everything a command needs from the container
type deps struct {
	dig.In

	Logger    *zap.Logger
	Session   *core.SessionStore
	Status    *core.StatusMonitor
	Store     core.CredentialStore
	Frontends *factory.FrontendFactory
}

// restore reloads the persisted session and reports whether it is usable
func (d deps) restore(ctx context.Context) bool {
	ok, err := d.Session.Restore(ctx)
	if err != nil {
		d.Logger.Warn("Failed to restore session", zap.Error(err))
		return false
	}
	return ok
}

// invoke builds the container and runs fn with its dependencies
func invoke(ctx context.Context, fn func(context.Context, deps) error) error {
	container, err := di.BuildCLIContainer(&flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(d deps) error {
		defer d.Logger.Sync()

		// Close the credential store if needed
		if stopper, ok := d.Store.(interface{ Stop() }); ok {
			defer stopper.Stop()
		}
		return fn(ctx, d)
	})
}

// runFrontend serves fe until it returns and then stops it
func runFrontend(ctx context.Context, fe ports.Frontend) error {
	defer func() {
		_ = fe.Stop()
	}()
	return fe.Run(ctx)
}

// readPassword reads a password without echo when stdin is a terminal
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		return string(b), err
	}
	return readLine(os.Stdin)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
