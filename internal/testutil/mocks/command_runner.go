// Package mocks provides test doubles for the ports used by the provisioner.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/provisioner/internal/ports"
)

// CommandRunner is a thread-safe ports.CommandRunner that replays canned
// results keyed by the full command line.
type CommandRunner struct {
	mu      sync.Mutex
	results map[string]ports.CommandResult
	errors  map[string]error
	hooks   map[string]func(ctx context.Context) (ports.CommandResult, error)
	calls   []ports.CommandCall
}

// NewCommandRunner creates an empty CommandRunner.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results: make(map[string]ports.CommandResult),
		errors:  make(map[string]error),
		hooks:   make(map[string]func(ctx context.Context) (ports.CommandResult, error)),
	}
}

// AddResult registers the result for command with args.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[buildKey(command, args)] = result
}

// AddOutput registers a successful run printing stdout.
func (m *CommandRunner) AddOutput(command string, args []string, stdout string) {
	m.AddResult(command, args, ports.CommandResult{Stdout: stdout})
}

// AddFailure registers a run exiting with code and printing stderr.
func (m *CommandRunner) AddFailure(command string, args []string, code int, stderr string) {
	m.AddResult(command, args, ports.CommandResult{ExitCode: code, Stderr: stderr})
}

// AddError registers a command that cannot be started.
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(command, args)] = err
}

// AddHook registers a function computing the result, for commands whose
// outcome depends on the context (deadlines) or on earlier calls.
func (m *CommandRunner) AddHook(command string, args []string, hook func(ctx context.Context) (ports.CommandResult, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[buildKey(command, args)] = hook
}

// Run records the call and replays the registered outcome.
func (m *CommandRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	key := buildKey(command, args)

	m.mu.Lock()
	m.calls = append(m.calls, ports.CommandCall{Command: command, Args: append([]string(nil), args...)})
	hook, hasHook := m.hooks[key]
	err, hasErr := m.errors[key]
	result, hasResult := m.results[key]
	m.mu.Unlock()

	switch {
	case hasHook:
		return hook(ctx)
	case hasErr:
		return ports.CommandResult{}, err
	case hasResult:
		return result, nil
	default:
		return ports.CommandResult{}, fmt.Errorf("no mock result for command: %s %v", command, args)
	}
}

// Calls returns a copy of the recorded invocations.
func (m *CommandRunner) Calls() []ports.CommandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ports.CommandCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Called reports whether command with exactly args was run.
func (m *CommandRunner) Called(command string, args ...string) bool {
	key := buildKey(command, args)
	for _, c := range m.Calls() {
		if buildKey(c.Command, c.Args) == key {
			return true
		}
	}
	return false
}

// Reset clears registrations and recorded calls.
func (m *CommandRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]ports.CommandResult)
	m.errors = make(map[string]error)
	m.hooks = make(map[string]func(ctx context.Context) (ports.CommandResult, error))
	m.calls = nil
}

func buildKey(command string, args []string) string {
	return command + ":" + strings.Join(args, ":")
}

var _ ports.CommandRunner = (*CommandRunner)(nil)
