// Package validation provides input validation for names and constraints that
// end up as arguments of package manager commands.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Common validation errors.
var (
	ErrEmptyInput          = errors.New("input cannot be empty")
	ErrInvalidPackageName  = errors.New("invalid package name")
	ErrInvalidLibraryName  = errors.New("invalid library name")
	ErrInvalidConstraint   = errors.New("invalid version constraint")
	ErrCommandInjection    = errors.New("potential command injection detected")
	ErrInvalidCommandValue = errors.New("invalid command")
)

const maxNameLength = 256

var (
	// packageNameRegex matches system package and binary names.
	// Examples: "ffmpeg", "node-lts", "python3.11", "g++"
	packageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)

	// libraryNameRegex matches Python distribution names with optional extras.
	// Examples: "fastapi", "yt-dlp", "uvicorn[standard]", "zope.interface"
	libraryNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*(\[[a-zA-Z0-9._-]+(,[a-zA-Z0-9._-]+)*\])?$`)

	// constraintClauseRegex matches one comma separated clause of a version
	// constraint. Examples: "==23.1.0", ">=0.30", "~=1.4", "!=2.0.*", "1.2.3"
	constraintClauseRegex = regexp.MustCompile(`^(==|!=|>=|<=|~=|>|<)?\s*[a-zA-Z0-9][a-zA-Z0-9._*+-]*$`)

	// commandRegex matches executable names or absolute paths used as installers.
	// Examples: "pip", "pip3", "/usr/local/bin/python3.12"
	commandRegex = regexp.MustCompile(`^[a-zA-Z0-9/._-]+$`)

	shellMetaChars = []string{";", "|", "&", "$", "`", "(", ")", "{", "}", "<", ">", "\n", "\r", "\\"}
)

// ValidatePackageName validates a system package or binary name.
func ValidatePackageName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidPackageName, maxNameLength)
	}
	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}
	if !packageNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidPackageName, name)
	}
	return nil
}

// ValidateLibraryName validates a Python library name, extras allowed.
func ValidateLibraryName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidLibraryName, maxNameLength)
	}
	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}
	if !libraryNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid distribution name", ErrInvalidLibraryName, name)
	}
	return nil
}

// ValidateConstraint validates a version constraint. The empty constraint is
// valid and means "any version". Comparison operators are allowed here, so
// only the remaining shell metacharacters are rejected.
func ValidateConstraint(constraint string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}
	if len(constraint) > maxNameLength {
		return fmt.Errorf("%w: constraint too long", ErrInvalidConstraint)
	}
	for _, char := range shellMetaChars {
		if char == "<" || char == ">" {
			continue
		}
		if strings.Contains(constraint, char) {
			return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, constraint)
		}
	}
	for _, clause := range strings.Split(constraint, ",") {
		if !constraintClauseRegex.MatchString(strings.TrimSpace(clause)) {
			return fmt.Errorf("%w: %q", ErrInvalidConstraint, constraint)
		}
	}
	return nil
}

// ValidateCommand validates an installer executable configured by the user.
func ValidateCommand(command string) error {
	if command == "" {
		return ErrEmptyInput
	}
	if containsShellMeta(command) || !commandRegex.MatchString(command) {
		return fmt.Errorf("%w: %q", ErrInvalidCommandValue, command)
	}
	return nil
}

func containsShellMeta(s string) bool {
	for _, char := range shellMetaChars {
		if strings.Contains(s, char) {
			return true
		}
	}
	return false
}
