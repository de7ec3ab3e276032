package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
)

// EnvironmentQueryError means the query mechanism itself is unusable, so no
// further check can be trusted. It aborts a run before any result exists.
type EnvironmentQueryError struct {
	Entry     manifest.Entry
	Mechanism string
	Err       error
}

func (e *EnvironmentQueryError) Error() string {
	return fmt.Sprintf("environment query via %s failed while checking %s: %v", e.Mechanism, e.Entry.Name(), e.Err)
}

func (e *EnvironmentQueryError) Unwrap() error {
	return e.Err
}

// InstallFailure is recorded when the installer could not install an entry.
type InstallFailure struct {
	Entry   manifest.Entry
	Message string
	Err     error
}

func (e *InstallFailure) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "installer reported failure"
	}
}

func (e *InstallFailure) Unwrap() error {
	return e.Err
}

// VerificationFailure is recorded when an installed binary does not resolve
// on the execution path.
type VerificationFailure struct {
	Entry manifest.Entry
	Err   error
}

// Error is DetailVerificationFailed, or the context error when the lookup
// was interrupted rather than answered.
func (e *VerificationFailure) Error() string {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return e.Err.Error()
	}
	return DetailVerificationFailed
}

func (e *VerificationFailure) Unwrap() error {
	return e.Err
}
