// Package brew installs binaries from Homebrew formulae.
package brew

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/provisioner/internal/adapters/command"
	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
	"github.com/felixgeelhaar/provisioner/internal/ports"
	"github.com/felixgeelhaar/provisioner/internal/validation"
)

// Manager implements ports.PackageManager and ports.SelfUpgrader with brew.
type Manager struct {
	runner ports.CommandRunner
}

// NewManager creates a Homebrew manager.
func NewManager(runner ports.CommandRunner) *Manager {
	return &Manager{runner: runner}
}

// Name returns "brew".
func (m *Manager) Name() string {
	return "brew"
}

// Query runs `brew list --versions`. Any installed version satisfying the
// constraint is enough.
func (m *Manager) Query(ctx context.Context, name, constraint string) (bool, error) {
	if err := validation.ValidatePackageName(name); err != nil {
		return false, fmt.Errorf("invalid formula name: %w", err)
	}

	result, err := m.runner.Run(ctx, "brew", "list", "--versions", name)
	if err != nil {
		if command.IsCommandNotFound(err) {
			return false, fmt.Errorf("%w: brew: %w", ports.ErrInstallerNotFound, err)
		}
		return false, fmt.Errorf("brew list %s: %w", name, err)
	}
	if !result.Success() {
		return false, nil
	}

	versions := InstalledVersions(result.Stdout)
	if len(versions) == 0 {
		return false, nil
	}
	if constraint == "" {
		return true, nil
	}

	c, err := manifest.ParseConstraint(constraint)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if ok, err := c.Allows(v); err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}

// Install runs `brew install <name>`. Homebrew has no version pinning on
// install, so the constraint is only honoured by the later query.
func (m *Manager) Install(ctx context.Context, name, _ string) (ports.InstallOutcome, error) {
	if err := validation.ValidatePackageName(name); err != nil {
		return ports.InstallOutcome{}, fmt.Errorf("invalid formula name: %w", err)
	}

	result, err := m.runner.Run(ctx, "brew", "install", name)
	if err != nil {
		return ports.InstallOutcome{}, err
	}
	if !result.Success() {
		msg := result.Message()
		if msg == "" {
			msg = fmt.Sprintf("brew install %s failed with exit code %d", name, result.ExitCode)
		}
		return ports.InstallOutcome{Message: msg}, nil
	}
	return ports.InstallOutcome{Success: true, Message: result.Message()}, nil
}

// Upgrade runs `brew update`.
func (m *Manager) Upgrade(ctx context.Context) error {
	result, err := m.runner.Run(ctx, "brew", "update")
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("brew update failed: %s", result.Message())
	}
	return nil
}

// InstalledVersions parses `brew list --versions` output such as
// "ffmpeg 6.1.1_2 7.0". Bottle revisions ("_2") are dropped.
func InstalledVersions(stdout string) []string {
	fields := strings.Fields(strings.TrimSpace(stdout))
	if len(fields) < 2 {
		return nil
	}
	versions := make([]string, 0, len(fields)-1)
	for _, f := range fields[1:] {
		if i := strings.IndexByte(f, '_'); i > 0 {
			f = f[:i]
		}
		versions = append(versions, f)
	}
	return versions
}

var (
	_ ports.PackageManager = (*Manager)(nil)
	_ ports.SelfUpgrader   = (*Manager)(nil)
)
