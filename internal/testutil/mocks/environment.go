package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/provisioner/internal/ports"
)

// Environment is an in-memory machine: a set of installed packages plus the
// executables present on PATH. Its managers and resolver share that state,
// so an install becomes visible to later queries.
type Environment struct {
	mu        sync.Mutex
	installed map[string]string
	onPath    map[string]string
	queryErr  error
	installs  []string
	upgrades  []string
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		installed: make(map[string]string),
		onPath:    make(map[string]string),
	}
}

// Install marks name as installed at version.
func (e *Environment) Install(name, version string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.installed[name] = version
}

// PutOnPath makes name resolvable.
func (e *Environment) PutOnPath(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPath[name] = "/usr/bin/" + name
}

// BreakQueries makes every query and lookup fail with err.
func (e *Environment) BreakQueries(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queryErr = err
}

// Installs returns the names passed to Install on any manager, in order.
func (e *Environment) Installs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.installs...)
}

// Upgrades returns the names of managers that upgraded themselves.
func (e *Environment) Upgrades() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.upgrades...)
}

// Resolve implements ports.BinaryResolver.
func (e *Environment) Resolve(_ context.Context, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.queryErr != nil {
		return "", e.queryErr
	}
	return e.onPath[name], nil
}

// InstallBehavior decides the outcome of one install call.
type InstallBehavior func(ctx context.Context) (ports.InstallOutcome, error)

// Succeed reports a successful install.
func Succeed() InstallBehavior {
	return func(context.Context) (ports.InstallOutcome, error) {
		return ports.InstallOutcome{Success: true, Message: "done"}, nil
	}
}

// Fail reports an installer failure with message.
func Fail(message string) InstallBehavior {
	return func(context.Context) (ports.InstallOutcome, error) {
		return ports.InstallOutcome{Message: message}, nil
	}
}

// Hang blocks until the install context ends.
func Hang() InstallBehavior {
	return func(ctx context.Context) (ports.InstallOutcome, error) {
		<-ctx.Done()
		return ports.InstallOutcome{}, ctx.Err()
	}
}

// PackageManager is a ports.PackageManager over an Environment.
type PackageManager struct {
	env       *Environment
	name      string
	binaries  bool
	upgradeOK bool
	mu        sync.Mutex
	behaviors map[string]InstallBehavior
	hidden    map[string]bool
	versions  map[string]string
}

// LibraryManager returns a manager for libraries named name.
func (e *Environment) LibraryManager(name string) *PackageManager {
	return e.newManager(name, false)
}

// BinaryManager returns a manager whose installs also put executables on PATH.
func (e *Environment) BinaryManager(name string) *PackageManager {
	return e.newManager(name, true)
}

func (e *Environment) newManager(name string, binaries bool) *PackageManager {
	return &PackageManager{
		env:       e,
		name:      name,
		binaries:  binaries,
		upgradeOK: true,
		behaviors: make(map[string]InstallBehavior),
		hidden:    make(map[string]bool),
		versions:  make(map[string]string),
	}
}

// On sets the install behavior for pkg. Packages without one succeed.
func (m *PackageManager) On(pkg string, b InstallBehavior) *PackageManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviors[pkg] = b
	return m
}

// InstallsVersion sets the version a successful install of pkg records.
func (m *PackageManager) InstallsVersion(pkg, version string) *PackageManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[pkg] = version
	return m
}

// HideAfterInstall makes a successful install of pkg leave no executable.
func (m *PackageManager) HideAfterInstall(pkg string) *PackageManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hidden[pkg] = true
	return m
}

// FailUpgrade makes Upgrade return an error.
func (m *PackageManager) FailUpgrade() *PackageManager {
	m.upgradeOK = false
	return m
}

// Name implements ports.PackageManager.
func (m *PackageManager) Name() string {
	return m.name
}

// Query reports whether pkg is installed. A constraint only matches an
// exact "==version" of the recorded version.
func (m *PackageManager) Query(_ context.Context, pkg, constraint string) (bool, error) {
	m.env.mu.Lock()
	defer m.env.mu.Unlock()
	if m.env.queryErr != nil {
		return false, m.env.queryErr
	}
	version, ok := m.env.installed[pkg]
	if !ok {
		return false, nil
	}
	if constraint == "" || version == "" {
		return true, nil
	}
	return constraint == "=="+version, nil
}

// Install runs the behavior registered for pkg and, on success, records
// it in the environment.
func (m *PackageManager) Install(ctx context.Context, pkg, constraint string) (ports.InstallOutcome, error) {
	m.mu.Lock()
	behavior, ok := m.behaviors[pkg]
	hidden := m.hidden[pkg]
	version := m.versions[pkg]
	m.mu.Unlock()
	if !ok {
		behavior = Succeed()
	}

	m.env.mu.Lock()
	m.env.installs = append(m.env.installs, pkg)
	m.env.mu.Unlock()

	outcome, err := behavior(ctx)
	if err != nil || !outcome.Success {
		return outcome, err
	}

	if version == "" && len(constraint) > 2 && constraint[:2] == "==" {
		version = constraint[2:]
	}
	m.env.mu.Lock()
	m.env.installed[pkg] = version
	if m.binaries && !hidden {
		m.env.onPath[pkg] = "/usr/bin/" + pkg
	}
	m.env.mu.Unlock()
	return outcome, nil
}

// Upgrade implements ports.SelfUpgrader.
func (m *PackageManager) Upgrade(context.Context) error {
	m.env.mu.Lock()
	defer m.env.mu.Unlock()
	if !m.upgradeOK {
		return errors.New("upgrade failed")
	}
	m.env.upgrades = append(m.env.upgrades, m.name)
	return nil
}

var (
	_ ports.PackageManager = (*PackageManager)(nil)
	_ ports.SelfUpgrader   = (*PackageManager)(nil)
	_ ports.BinaryResolver = (*Environment)(nil)
)
