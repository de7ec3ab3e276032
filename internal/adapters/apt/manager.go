// Package apt installs binaries from Debian packages with apt-get and
// queries them with dpkg-query.
package apt

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/provisioner/internal/adapters/command"
	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
	"github.com/felixgeelhaar/provisioner/internal/ports"
	"github.com/felixgeelhaar/provisioner/internal/validation"
)

// Manager implements ports.PackageManager and ports.SelfUpgrader with apt.
type Manager struct {
	runner ports.CommandRunner
	sudo   bool
}

// NewManager creates an apt manager. With sudo set, mutating commands are
// prefixed with sudo.
func NewManager(runner ports.CommandRunner, sudo bool) *Manager {
	return &Manager{runner: runner, sudo: sudo}
}

// Name returns "apt".
func (m *Manager) Name() string {
	return "apt"
}

// Query asks dpkg for the installed version of name.
func (m *Manager) Query(ctx context.Context, name, constraint string) (bool, error) {
	if err := validation.ValidatePackageName(name); err != nil {
		return false, fmt.Errorf("invalid package name: %w", err)
	}

	result, err := m.runner.Run(ctx, "dpkg-query", "-W", "-f=${Version}\t${db:Status-Status}\n", name)
	if err != nil {
		if command.IsCommandNotFound(err) {
			return false, fmt.Errorf("%w: dpkg-query: %w", ports.ErrInstallerNotFound, err)
		}
		return false, fmt.Errorf("dpkg-query %s: %w", name, err)
	}
	// dpkg-query exits 1 for unknown packages
	if !result.Success() {
		return false, nil
	}

	version, status, _ := strings.Cut(strings.TrimSpace(result.Stdout), "\t")
	if status != "installed" {
		return false, nil
	}
	if constraint == "" {
		return true, nil
	}

	c, err := manifest.ParseConstraint(constraint)
	if err != nil {
		return false, err
	}
	ok, err := c.Allows(UpstreamVersion(version))
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// Install runs `apt-get install -y`. Only exact pins are passed to apt as
// name=version; ranges install the candidate version.
func (m *Manager) Install(ctx context.Context, name, constraint string) (ports.InstallOutcome, error) {
	if err := validation.ValidatePackageName(name); err != nil {
		return ports.InstallOutcome{}, fmt.Errorf("invalid package name: %w", err)
	}

	spec := name
	if constraint != "" {
		c, err := manifest.ParseConstraint(constraint)
		if err != nil {
			return ports.InstallOutcome{}, err
		}
		if v, ok := c.ExactVersion(); ok {
			if err := validation.ValidatePackageName(v); err != nil {
				return ports.InstallOutcome{}, fmt.Errorf("invalid package version: %w", err)
			}
			spec = name + "=" + v
		}
	}

	result, err := m.run(ctx, "install", "-y", "--no-install-recommends", spec)
	if err != nil {
		return ports.InstallOutcome{}, err
	}
	if !result.Success() {
		msg := result.Message()
		if msg == "" {
			msg = fmt.Sprintf("apt-get install %s failed with exit code %d", spec, result.ExitCode)
		}
		return ports.InstallOutcome{Message: msg}, nil
	}
	return ports.InstallOutcome{Success: true, Message: result.Message()}, nil
}

// Upgrade refreshes the package index with `apt-get update`.
func (m *Manager) Upgrade(ctx context.Context) error {
	result, err := m.run(ctx, "update")
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("apt-get update failed: %s", result.Message())
	}
	return nil
}

func (m *Manager) run(ctx context.Context, args ...string) (ports.CommandResult, error) {
	if m.sudo {
		return m.runner.Run(ctx, "sudo", append([]string{"apt-get"}, args...)...)
	}
	return m.runner.Run(ctx, "apt-get", args...)
}

// UpstreamVersion strips the epoch and Debian revision from a package
// version: "7:6.1.1-3ubuntu5" becomes "6.1.1".
func UpstreamVersion(version string) string {
	if _, rest, ok := strings.Cut(version, ":"); ok {
		version = rest
	}
	if i := strings.LastIndexByte(version, '-'); i > 0 {
		version = version[:i]
	}
	if i := strings.IndexByte(version, '+'); i > 0 {
		version = version[:i]
	}
	return version
}

var (
	_ ports.PackageManager = (*Manager)(nil)
	_ ports.SelfUpgrader   = (*Manager)(nil)
)
