package app

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/provisioner/internal/config"
	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
)

// ValidationResult contains the results of manifest validation.
type ValidationResult struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Info     []string `json:"info,omitempty"`
}

// Valid reports whether no errors were found.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks the manifest at path without touching the environment.
// Manifest problems are collected in the result; only unexpected failures
// are returned as errors.
func (a *App) Validate(path string) (*ValidationResult, error) {
	if path == "" {
		path = a.cfg.Manifest
	}
	result := &ValidationResult{}

	m, err := manifest.Load(path)
	if err != nil {
		var list *manifest.ErrorList
		var uerr *manifest.UserError
		switch {
		case errors.As(err, &list):
			for _, e := range list.Errors() {
				result.Errors = append(result.Errors, e.Format())
			}
		case errors.As(err, &uerr):
			result.Errors = append(result.Errors, uerr.Format())
		default:
			return nil, err
		}
		return result, nil
	}

	counts := m.CountByKind()
	result.Info = append(result.Info,
		fmt.Sprintf("Loaded manifest from %s", path),
		fmt.Sprintf("%d libraries, %d binaries", counts[manifest.KindLibrary], counts[manifest.KindBinary]),
	)
	if m.UpgradeInstallers() {
		result.Info = append(result.Info, "Installers upgrade themselves before installing")
	}

	if m.Len() == 0 {
		result.Warnings = append(result.Warnings, "Manifest declares no entries")
	}
	for _, e := range m.Entries() {
		if e.Kind() != manifest.KindBinary || !e.HasConstraint() {
			continue
		}
		switch a.cfg.Binary.Manager {
		case config.ManagerBrew:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: brew cannot pin versions; %s is only checked after install", e.Name(), e.Constraint()))
		case config.ManagerApt:
			if _, exact := e.VersionConstraint().ExactVersion(); !exact {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s: apt installs the candidate version for range %s", e.Name(), e.Constraint()))
			}
		}
	}

	return result, nil
}
