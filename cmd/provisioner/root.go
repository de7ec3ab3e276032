package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/felixgeelhaar/provisioner/internal/adapters/logging"
	"github.com/felixgeelhaar/provisioner/internal/app"
	"github.com/felixgeelhaar/provisioner/internal/config"
	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
	"github.com/felixgeelhaar/provisioner/internal/ports"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile    string
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "provisioner",
	Short: "Install the dependencies a deployment needs",
	Long: `Provisioner reads a manifest of required Python libraries and external
binaries, works out which are missing, installs them one at a time and
verifies the result:
  Manifest → Check → Plan → Install → Verify

A run exits non-zero when any entry failed, so deployments never continue
on a silent partial install.`,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// newApp builds the application; tests replace it to inject fakes.
var newApp = func(cfg *config.Config, out io.Writer, logger ports.Logger) (*app.App, error) {
	return app.New(cfg, out, app.WithLogger(logger))
}

// exitError carries a process exit code for outcomes that were already
// reported, such as a degraded run.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	return execute(ctx, os.Stderr)
}

func execute(ctx context.Context, stderr io.Writer) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	printErrorTo(stderr, err)
	return 1
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "settings file (default: ./provisioner.yaml if present)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&jsonOutput, "json", false, "print machine-readable JSON")
	flags.StringP("manifest", "m", config.DefaultManifest, "manifest file (.yaml, .toml, requirements .txt, setup.cfg)")
	flags.Duration("timeout", config.DefaultTimeout, "timeout for each install call")
	flags.String("pip", "pip", "pip executable")
	flags.Bool("user", false, "install libraries with pip --user")
	flags.String("binary-manager", "", "binary package manager (apt, brew)")
	flags.Bool("sudo", false, "run apt-get through sudo")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "log as JSON lines")
	flags.Bool("color", true, "colorize output")

	registerFlagCompletions()

	rootCmd.AddCommand(versionCmd)
}

// setup loads configuration and builds the app for a subcommand. A
// positional manifest argument wins over --manifest.
func setup(cmd *cobra.Command, args []string) (*app.App, string, error) {
	cfg, _, err := config.Load(config.LoadOptions{ConfigFile: cfgFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, "", err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		JSON:   cfg.Log.JSON,
		Color:  cfg.Log.Color,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, "", err
	}

	a, err := newApp(cfg, cmd.OutOrStdout(), logger)
	if err != nil {
		return nil, "", err
	}

	path := cfg.Manifest
	if len(args) > 0 {
		path = args[0]
	}
	return a, path, nil
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	var list *manifest.ErrorList
	if errors.As(err, &list) {
		msg := fmt.Sprintf("%d problems in manifest:", list.Len())
		for _, e := range list.Errors() {
			msg += "\n  - " + formatUserError(e)
		}
		return msg
	}

	var userErr *manifest.UserError
	if errors.As(err, &userErr) {
		return formatUserError(userErr)
	}
	if errors.Is(err, ports.ErrInstallerNotFound) {
		return err.Error() + "\n\nSuggestion: Install the missing installer, or set --pip / --binary-manager to one on PATH"
	}
	return err.Error()
}

func formatUserError(userErr *manifest.UserError) string {
	msg := userErr.Message
	if userErr.Context != "" {
		msg += fmt.Sprintf(" (at %s)", userErr.Context)
	}
	if userErr.Suggestion != "" {
		msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
	}
	if verbose && userErr.Underlying != nil {
		msg += fmt.Sprintf("\n\nTechnical details: %v", userErr.Underlying)
	}
	return msg
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

// registerFlagCompletions sets up custom completions for global flags.
func registerFlagCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("manifest", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml", "toml", "txt", "cfg"}, cobra.ShellCompDirectiveFilterFileExt
	})

	_ = rootCmd.RegisterFlagCompletionFunc("binary-manager", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"apt\tDebian and Ubuntu packages",
			"brew\tHomebrew formulae",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
}
