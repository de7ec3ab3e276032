// Package provision reconciles the dependencies a manifest requires with
// what the local environment already has, installing the difference one
// entry at a time.
package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
	"github.com/felixgeelhaar/provisioner/internal/ports"
	"github.com/google/uuid"
)

// DefaultInstallTimeout bounds a single install call.
const DefaultInstallTimeout = 10 * time.Minute

// Provisioner checks, plans and installs manifest entries. Installs are
// strictly sequential and runs are serialized: package managers are not
// safe for concurrent use against a shared environment.
type Provisioner struct {
	libraries ports.PackageManager
	binaries  ports.PackageManager
	resolver  ports.BinaryResolver
	logger    ports.Logger
	timeout   time.Duration

	mu        sync.Mutex
	lifecycle *lifecycle
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger. Without one, a logger attached to the
// context is used if present.
func WithLogger(logger ports.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// WithInstallTimeout bounds each install call. Non-positive values keep
// the default.
func WithInstallTimeout(d time.Duration) Option {
	return func(p *Provisioner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New creates a Provisioner. libraries installs KindLibrary entries,
// binaries installs KindBinary entries and resolver locates executables.
func New(libraries, binaries ports.PackageManager, resolver ports.BinaryResolver, opts ...Option) (*Provisioner, error) {
	if libraries == nil || binaries == nil || resolver == nil {
		return nil, errors.New("provisioner requires a library manager, a binary manager and a binary resolver")
	}

	lc, err := newLifecycle()
	if err != nil {
		return nil, err
	}

	p := &Provisioner{
		libraries: libraries,
		binaries:  binaries,
		resolver:  resolver,
		timeout:   DefaultInstallTimeout,
		lifecycle: lc,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Phase returns the phase of the current or most recent run.
func (p *Provisioner) Phase() Phase {
	return p.lifecycle.phase()
}

// Check reports whether entry is already satisfied. It never mutates the
// environment. A broken query mechanism yields *EnvironmentQueryError.
func (p *Provisioner) Check(ctx context.Context, entry manifest.Entry) (bool, error) {
	switch entry.Kind() {
	case manifest.KindLibrary:
		ok, err := p.libraries.Query(ctx, entry.Name(), entry.Constraint())
		if err != nil {
			return false, &EnvironmentQueryError{Entry: entry, Mechanism: p.libraries.Name(), Err: err}
		}
		return ok, nil

	case manifest.KindBinary:
		path, err := p.resolver.Resolve(ctx, entry.Name())
		if err != nil {
			return false, &EnvironmentQueryError{Entry: entry, Mechanism: "path lookup", Err: err}
		}
		if path == "" {
			return false, nil
		}
		if !entry.HasConstraint() {
			return true, nil
		}
		ok, err := p.binaries.Query(ctx, entry.Name(), entry.Constraint())
		if err != nil {
			return false, &EnvironmentQueryError{Entry: entry, Mechanism: p.binaries.Name(), Err: err}
		}
		return ok, nil

	default:
		return false, fmt.Errorf("unsupported entry kind %q", entry.Kind())
	}
}

// Plan checks every entry and returns those that need installing, in
// manifest order. The first query failure aborts planning.
func (p *Provisioner) Plan(ctx context.Context, m *manifest.Manifest) (*InstallPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plan(ctx, m, p.log(ctx))
}

// Install attempts every plan entry in order. A failed entry is recorded
// and the next one is still attempted. Installed binaries that do not
// resolve afterwards are re-marked as failed.
func (p *Provisioner) Install(ctx context.Context, plan *InstallPlan) []InstallResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	logger := p.log(ctx)
	results := p.install(ctx, plan, logger)
	return p.verify(ctx, results, logger)
}

// Run plans and installs m. Satisfied entries are reported as skipped, so
// the results follow manifest order. Only *EnvironmentQueryError is
// returned as an error, and then no results are produced.
func (p *Provisioner) Run(ctx context.Context, m *manifest.Manifest) ([]InstallResult, Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	logger := p.log(ctx).With(ports.F(ports.KeyRunID, uuid.NewString()))
	start := time.Now()

	p.lifecycle.send(eventPlan)
	plan, err := p.plan(ctx, m, logger)
	if err != nil {
		p.lifecycle.send(eventAbort)
		logger.Error(ctx, "provisioning aborted", ports.Err(err))
		return nil, StatusDegraded, err
	}

	p.lifecycle.send(eventInstall)
	if m.UpgradeInstallers() && !plan.IsEmpty() {
		p.upgradeInstallers(ctx, plan, logger)
	}
	installed := p.install(ctx, plan, logger)

	p.lifecycle.send(eventVerify)
	installed = p.verify(ctx, installed, logger)

	results := make([]InstallResult, 0, len(plan.Items()))
	next := 0
	for _, item := range plan.Items() {
		if item.Satisfied {
			results = append(results, Skipped(item.Entry))
			continue
		}
		results = append(results, installed[next])
		next++
	}

	status := OverallStatus(results)
	summary := Summarize(results)
	p.lifecycle.send(eventComplete)
	logger.Info(ctx, "provisioning finished",
		ports.F("status", status),
		ports.F("skipped", summary.Skipped),
		ports.F("installed", summary.Installed),
		ports.F("failed", summary.Failed),
		ports.F("duration", time.Since(start).Round(time.Millisecond).String()),
	)
	return results, status, nil
}

func (p *Provisioner) plan(ctx context.Context, m *manifest.Manifest, logger ports.Logger) (*InstallPlan, error) {
	if m == nil {
		return NewInstallPlan(), nil
	}

	items := make([]PlanItem, 0, m.Len())
	for _, entry := range m.Entries() {
		ok, err := p.Check(ctx, entry)
		if err != nil {
			return nil, err
		}
		logger.Debug(ctx, "checked entry", ports.Entry(entry), ports.F("satisfied", ok))
		items = append(items, PlanItem{Entry: entry, Satisfied: ok})
	}

	plan := NewInstallPlan(items...)
	logger.Info(ctx, "plan ready", ports.F("entries", m.Len()), ports.F("to_install", plan.Len()))
	return plan, nil
}

func (p *Provisioner) install(ctx context.Context, plan *InstallPlan, logger ports.Logger) []InstallResult {
	entries := plan.Entries()
	results := make([]InstallResult, 0, len(entries))

	for _, entry := range entries {
		result := p.installEntry(ctx, entry)
		if result.IsFailed() {
			logger.Warn(ctx, "install failed", ports.Entry(entry), ports.F("detail", result.Detail()))
		} else {
			logger.Info(ctx, "installed", ports.Entry(entry))
		}
		results = append(results, result)
	}
	return results
}

func (p *Provisioner) installEntry(ctx context.Context, entry manifest.Entry) InstallResult {
	manager := p.managerFor(entry.Kind())

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	outcome, err := manager.Install(callCtx, entry.Name(), entry.Constraint())
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return Failed(entry, &InstallFailure{Entry: entry, Message: DetailTimeout, Err: context.DeadlineExceeded})
	}
	if err != nil {
		return Failed(entry, &InstallFailure{Entry: entry, Err: err})
	}
	if !outcome.Success {
		return Failed(entry, &InstallFailure{Entry: entry, Message: outcome.Message})
	}
	return Installed(entry, outcome.Message)
}

// verify re-marks installed binaries that do not resolve. Installers
// reporting success does not imply the executable is usable.
func (p *Provisioner) verify(ctx context.Context, results []InstallResult, logger ports.Logger) []InstallResult {
	out := make([]InstallResult, len(results))
	copy(out, results)

	for i, r := range out {
		if r.Outcome() != OutcomeInstalled || r.Entry().Kind() != manifest.KindBinary {
			continue
		}
		path, err := p.resolver.Resolve(ctx, r.Entry().Name())
		if err == nil && path != "" {
			logger.Debug(ctx, "binary verified", ports.Entry(r.Entry()), ports.F("path", path))
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		out[i] = Failed(r.Entry(), &VerificationFailure{Entry: r.Entry(), Err: err})
		logger.Warn(ctx, out[i].Detail(), ports.Entry(r.Entry()))
	}
	return out
}

// upgradeInstallers lets each package manager the plan needs upgrade
// itself first. Failures only produce a warning.
func (p *Provisioner) upgradeInstallers(ctx context.Context, plan *InstallPlan, logger ports.Logger) {
	for _, kind := range plan.Kinds() {
		manager := p.managerFor(kind)
		upgrader, ok := manager.(ports.SelfUpgrader)
		if !ok {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := upgrader.Upgrade(callCtx)
		cancel()
		if err != nil {
			logger.Warn(ctx, "installer self-upgrade failed", ports.F(ports.KeyInstaller, manager.Name()), ports.Err(err))
			continue
		}
		logger.Info(ctx, "installer upgraded", ports.F(ports.KeyInstaller, manager.Name()))
	}
}

func (p *Provisioner) managerFor(kind manifest.Kind) ports.PackageManager {
	if kind == manifest.KindBinary {
		return p.binaries
	}
	return p.libraries
}

func (p *Provisioner) log(ctx context.Context) ports.Logger {
	if p.logger != nil {
		return p.logger
	}
	if logger := ports.LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return discardLogger{}
}

type discardLogger struct{}

func (discardLogger) Debug(context.Context, string, ...ports.Field) {}
func (discardLogger) Info(context.Context, string, ...ports.Field)  {}
func (discardLogger) Warn(context.Context, string, ...ports.Field)  {}
func (discardLogger) Error(context.Context, string, ...ports.Field) {}
func (d discardLogger) With(...ports.Field) ports.Logger            { return d }
func (discardLogger) Level() ports.Level                            { return ports.LevelError }
func (discardLogger) SetLevel(ports.Level)                          {}
