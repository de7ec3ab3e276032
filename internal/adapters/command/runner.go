// Package command provides the process-backed ports.CommandRunner.
package command

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/felixgeelhaar/provisioner/internal/ports"
)

// RealRunner executes actual commands on the host.
type RealRunner struct {
	env    []string
	logger ports.Logger
}

// RunnerOption configures a RealRunner.
type RunnerOption func(*RealRunner)

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) RunnerOption {
	return func(r *RealRunner) {
		r.env = append(r.env, env...)
	}
}

// WithLogger logs every command and its exit code at debug level.
func WithLogger(logger ports.Logger) RunnerOption {
	return func(r *RealRunner) {
		r.logger = logger
	}
}

// NewRealRunner creates a new RealRunner.
func NewRealRunner(opts ...RunnerOption) *RealRunner {
	r := &RealRunner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a command and returns the result. A non-zero exit is
// reported through the result; an error means the command could not run
// or the context ended before it finished.
func (r *RealRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := ports.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.ExitCode = -1
			return result, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			r.debug(ctx, command, args, result.ExitCode, time.Since(start))
			return result, nil
		}
		return result, err
	}

	r.debug(ctx, command, args, 0, time.Since(start))
	return result, nil
}

func (r *RealRunner) debug(ctx context.Context, command string, args []string, exitCode int, elapsed time.Duration) {
	if r.logger == nil {
		return
	}
	r.logger.Debug(ctx, "command finished",
		ports.F("command", command),
		ports.F("args", strings.Join(args, " ")),
		ports.F("exit_code", exitCode),
		ports.F("duration", elapsed.Round(time.Millisecond).String()),
	)
}

// IsCommandNotFound reports whether an error indicates a missing executable.
func IsCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return true
	}
	return false
}

var _ ports.CommandRunner = (*RealRunner)(nil)
