// Package pip installs Python libraries through the pip command line.
package pip

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/provisioner/internal/adapters/command"
	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
	"github.com/felixgeelhaar/provisioner/internal/ports"
	"github.com/felixgeelhaar/provisioner/internal/validation"
)

// DefaultCommand is the pip executable used when none is configured.
const DefaultCommand = "pip"

// Manager implements ports.PackageManager and ports.SelfUpgrader with pip.
type Manager struct {
	runner  ports.CommandRunner
	command string
	user    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithCommand selects the pip executable, e.g. "pip3".
func WithCommand(command string) Option {
	return func(m *Manager) {
		if command != "" {
			m.command = command
		}
	}
}

// WithUserInstall adds --user to install calls.
func WithUserInstall(enabled bool) Option {
	return func(m *Manager) {
		m.user = enabled
	}
}

// NewManager creates a pip manager.
func NewManager(runner ports.CommandRunner, opts ...Option) *Manager {
	m := &Manager{runner: runner, command: DefaultCommand}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the executable name, used in logs and errors.
func (m *Manager) Name() string {
	return m.command
}

// Query runs `pip show` for the distribution. A non-zero exit means the
// library is absent. Extras are ignored for the lookup.
func (m *Manager) Query(ctx context.Context, name, constraint string) (bool, error) {
	base := baseName(name)
	if err := validation.ValidateLibraryName(base); err != nil {
		return false, fmt.Errorf("invalid library: %w", err)
	}

	result, err := m.runner.Run(ctx, m.command, "show", base)
	if err != nil {
		if command.IsCommandNotFound(err) {
			return false, fmt.Errorf("%w: %s: %w", ports.ErrInstallerNotFound, m.command, err)
		}
		return false, fmt.Errorf("%s show %s: %w", m.command, base, err)
	}
	if !result.Success() {
		return false, nil
	}

	version := parseShowVersion(result.Stdout)
	if constraint == "" {
		return true, nil
	}
	if version == "" {
		return false, nil
	}

	c, err := manifest.ParseConstraint(constraint)
	if err != nil {
		return false, err
	}
	ok, err := c.Allows(version)
	if err != nil {
		// Versions pip reports but semver cannot order are reinstalled.
		return false, nil
	}
	return ok, nil
}

// Install runs `pip install [--user] <name><constraint>`.
func (m *Manager) Install(ctx context.Context, name, constraint string) (ports.InstallOutcome, error) {
	if err := validation.ValidateLibraryName(name); err != nil {
		return ports.InstallOutcome{}, fmt.Errorf("invalid library: %w", err)
	}
	if err := validation.ValidateConstraint(constraint); err != nil {
		return ports.InstallOutcome{}, fmt.Errorf("invalid constraint: %w", err)
	}

	args := []string{"install", "--disable-pip-version-check"}
	if m.user {
		args = append(args, "--user")
	}
	args = append(args, name+constraint)

	result, err := m.runner.Run(ctx, m.command, args...)
	if err != nil {
		return ports.InstallOutcome{}, err
	}
	if !result.Success() {
		msg := result.Message()
		if msg == "" {
			msg = fmt.Sprintf("%s install %s exited with code %d", m.command, name+constraint, result.ExitCode)
		}
		return ports.InstallOutcome{Message: msg}, nil
	}
	return ports.InstallOutcome{Success: true, Message: result.Message()}, nil
}

// Upgrade runs `pip install --upgrade pip`.
func (m *Manager) Upgrade(ctx context.Context) error {
	args := []string{"install", "--upgrade"}
	if m.user {
		args = append(args, "--user")
	}
	args = append(args, "pip")

	result, err := m.runner.Run(ctx, m.command, args...)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("%s install --upgrade pip failed: %s", m.command, result.Message())
	}
	return nil
}

func parseShowVersion(stdout string) string {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func baseName(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

var (
	_ ports.PackageManager = (*Manager)(nil)
	_ ports.SelfUpgrader   = (*Manager)(nil)
)
