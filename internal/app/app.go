// Package app wires configuration, adapters and the provisioner together
// and renders plans and results for the command line.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/felixgeelhaar/provisioner/internal/adapters/apt"
	"github.com/felixgeelhaar/provisioner/internal/adapters/brew"
	"github.com/felixgeelhaar/provisioner/internal/adapters/command"
	"github.com/felixgeelhaar/provisioner/internal/adapters/logging"
	"github.com/felixgeelhaar/provisioner/internal/adapters/pathresolver"
	"github.com/felixgeelhaar/provisioner/internal/adapters/pip"
	"github.com/felixgeelhaar/provisioner/internal/config"
	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
	"github.com/felixgeelhaar/provisioner/internal/domain/provision"
	"github.com/felixgeelhaar/provisioner/internal/ports"
)

// installerEnv keeps installers from prompting.
var installerEnv = []string{
	"DEBIAN_FRONTEND=noninteractive",
	"PIP_NO_INPUT=1",
	"HOMEBREW_NO_AUTO_UPDATE=1",
}

// App is the provisioner application.
type App struct {
	cfg         *config.Config
	provisioner *provision.Provisioner
	logger      ports.Logger
	out         io.Writer
	styles      Styles
}

type settings struct {
	runner   ports.CommandRunner
	resolver ports.BinaryResolver
	logger   ports.Logger
}

// Option overrides a collaborator, mostly for tests.
type Option func(*settings)

// WithRunner replaces the command runner used by every package manager.
func WithRunner(runner ports.CommandRunner) Option {
	return func(s *settings) {
		s.runner = runner
	}
}

// WithResolver replaces the PATH resolver.
func WithResolver(resolver ports.BinaryResolver) Option {
	return func(s *settings) {
		s.resolver = resolver
	}
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// New creates an App from cfg, writing human output to out.
func New(cfg *config.Config, out io.Writer, opts ...Option) (*App, error) {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}

	s := settings{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.runner == nil {
		s.runner = command.NewRealRunner(command.WithEnv(installerEnv...), command.WithLogger(s.logger))
	}
	if s.resolver == nil {
		s.resolver = pathresolver.New()
	}

	libraries := pip.NewManager(s.runner, pip.WithCommand(cfg.Pip.Command), pip.WithUserInstall(cfg.Pip.User))

	var binaries ports.PackageManager
	switch cfg.Binary.Manager {
	case config.ManagerBrew:
		binaries = brew.NewManager(s.runner)
	case config.ManagerApt:
		binaries = apt.NewManager(s.runner, cfg.Binary.Sudo)
	default:
		return nil, fmt.Errorf("unsupported binary manager %q", cfg.Binary.Manager)
	}

	prov, err := provision.New(libraries, binaries, s.resolver,
		provision.WithInstallTimeout(cfg.Timeout),
		provision.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:         cfg,
		provisioner: prov,
		logger:      s.logger,
		out:         out,
		styles:      NewStyles(out, cfg.Log.Color),
	}, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// LoadManifest loads the manifest at path, or the configured one when path
// is empty.
func (a *App) LoadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		path = a.cfg.Manifest
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug(context.Background(), "manifest loaded",
		ports.F("path", path),
		ports.F("entries", m.Len()),
	)
	return m, nil
}

// Plan loads the manifest and computes what needs installing.
func (a *App) Plan(ctx context.Context, path string) (*manifest.Manifest, *provision.InstallPlan, error) {
	m, err := a.LoadManifest(path)
	if err != nil {
		return nil, nil, err
	}
	plan, err := a.provisioner.Plan(ctx, m)
	if err != nil {
		return nil, nil, err
	}
	return m, plan, nil
}

// Run loads the manifest and provisions it.
func (a *App) Run(ctx context.Context, path string) (*Report, error) {
	m, err := a.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	results, status, err := a.provisioner.Run(ctx, m)
	if err != nil {
		return nil, err
	}
	return NewReport(m, results, status), nil
}

// Phase returns the phase of the last run.
func (a *App) Phase() provision.Phase {
	return a.provisioner.Phase()
}

func (a *App) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}
