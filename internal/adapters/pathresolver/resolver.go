// Package pathresolver locates executables on the process search path.
package pathresolver

import (
	"context"
	"errors"
	"os/exec"

	"github.com/felixgeelhaar/provisioner/internal/ports"
	"github.com/felixgeelhaar/provisioner/internal/validation"
)

// LookupFunc matches exec.LookPath.
type LookupFunc func(file string) (string, error)

// Resolver implements ports.BinaryResolver.
type Resolver struct {
	lookup LookupFunc
}

// New returns a Resolver backed by exec.LookPath.
func New() *Resolver {
	return &Resolver{lookup: exec.LookPath}
}

// NewWithLookup returns a Resolver using lookup, for tests and for
// resolving against a PATH other than the process's.
func NewWithLookup(lookup LookupFunc) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the path of name, or "" when it is not on PATH. Names
// that could not be executables resolve to "".
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validation.ValidatePackageName(name); err != nil {
		return "", nil
	}

	path, err := r.lookup(name)
	if err == nil {
		return path, nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, exec.ErrDot) {
		return "", nil
	}
	return "", err
}

var _ ports.BinaryResolver = (*Resolver)(nil)
