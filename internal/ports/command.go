// Package ports defines the seams between the provisioner and the machine it
// provisions: command execution, package managers, binary lookup and logging.
package ports

import (
	"context"
	"errors"
	"strings"
)

// ErrInstallerNotFound marks a query that failed because the installer
// executable itself is missing.
var ErrInstallerNotFound = errors.New("installer not found")

// CommandResult represents the result of executing an external command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Message returns the most useful single line of output for reporting.
// Stderr wins over stdout; the last non-empty line is used.
func (r CommandResult) Message() string {
	for _, out := range []string{r.Stderr, r.Stdout} {
		lines := strings.Split(strings.TrimSpace(out), "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if line := strings.TrimSpace(lines[i]); line != "" {
				return line
			}
		}
	}
	return ""
}

// CommandCall records a command invocation.
type CommandCall struct {
	Command string
	Args    []string
}

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}
