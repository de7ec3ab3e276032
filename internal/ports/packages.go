package ports

import "context"

// InstallOutcome is what a package manager reports for one install call.
type InstallOutcome struct {
	Success bool
	Message string
}

// PackageManager queries and installs packages in the local environment.
//
// Query must not mutate the environment. It returns an error only when the
// query mechanism itself is unusable (missing tool, corrupted database);
// an absent or out-of-range package is (false, nil).
//
// Install returns an error only when the installer could not be invoked at
// all. A failed installation is reported as an unsuccessful outcome.
type PackageManager interface {
	Name() string
	Query(ctx context.Context, name, constraint string) (bool, error)
	Install(ctx context.Context, name, constraint string) (InstallOutcome, error)
}

// SelfUpgrader is implemented by package managers that can upgrade
// themselves before installing anything.
type SelfUpgrader interface {
	Upgrade(ctx context.Context) error
}

// BinaryResolver locates executables on the execution path.
// An unresolvable name is ("", nil); an error means the lookup itself failed.
type BinaryResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}
