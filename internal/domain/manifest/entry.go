// Package manifest models the declarative list of dependencies a deployment
// environment needs and loads it from YAML, TOML, requirements.txt and
// setup.cfg files.
package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/provisioner/internal/validation"
)

// Kind distinguishes importable libraries from executables.
type Kind string

const (
	// KindLibrary is a language-level package installed by the library manager.
	KindLibrary Kind = "library"
	// KindBinary is an executable that must resolve on the execution path.
	KindBinary Kind = "binary"
)

// ParseKind converts a kind name into a Kind. The empty string is a library.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindLibrary:
		return KindLibrary, nil
	case KindBinary:
		return KindBinary, nil
	default:
		return "", fmt.Errorf("unknown kind %q (expected %q or %q)", s, KindLibrary, KindBinary)
	}
}

// Entry is one required dependency. Its fields are fixed at creation.
type Entry struct {
	name       string
	kind       Kind
	constraint Constraint
}

// NewEntry creates a validated Entry.
func NewEntry(name string, kind Kind, constraint string) (Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, fmt.Errorf("entry name cannot be empty")
	}

	switch kind {
	case KindLibrary:
		if err := validation.ValidateLibraryName(name); err != nil {
			return Entry{}, err
		}
	case KindBinary:
		if err := validation.ValidatePackageName(name); err != nil {
			return Entry{}, err
		}
	default:
		return Entry{}, fmt.Errorf("unknown kind %q", kind)
	}

	if err := validation.ValidateConstraint(constraint); err != nil {
		return Entry{}, err
	}
	parsed, err := ParseConstraint(constraint)
	if err != nil {
		return Entry{}, err
	}

	return Entry{name: name, kind: kind, constraint: parsed}, nil
}

// MustNewEntry is NewEntry that panics on invalid input. Intended for tests
// and static manifests.
func MustNewEntry(name string, kind Kind, constraint string) Entry {
	e, err := NewEntry(name, kind, constraint)
	if err != nil {
		panic(err)
	}
	return e
}

// Library is shorthand for a library entry parsed from a requirement string
// such as "fastapi" or "uvicorn>=0.30".
func Library(requirement string) (Entry, error) {
	name, constraint := SplitRequirement(requirement)
	return NewEntry(name, KindLibrary, constraint)
}

// Binary is shorthand for an unconstrained binary entry.
func Binary(name string) (Entry, error) {
	return NewEntry(name, KindBinary, "")
}

// Name returns the declared name, including any extras.
func (e Entry) Name() string {
	return e.name
}

// Kind returns the entry kind.
func (e Entry) Kind() Kind {
	return e.kind
}

// Constraint returns the normalized version constraint, or "".
func (e Entry) Constraint() string {
	return e.constraint.String()
}

// VersionConstraint returns the parsed constraint.
func (e Entry) VersionConstraint() Constraint {
	return e.constraint
}

// HasConstraint reports whether a version constraint was declared.
func (e Entry) HasConstraint() bool {
	return !e.constraint.IsEmpty()
}

// BaseName returns the name without extras: "uvicorn[standard]" -> "uvicorn".
func (e Entry) BaseName() string {
	if i := strings.Index(e.name, "["); i > 0 {
		return e.name[:i]
	}
	return e.name
}

// Key identifies an entry for duplicate detection. Library names are
// compared the way Python package indexes compare them.
func (e Entry) Key() string {
	if e.kind == KindLibrary {
		return string(e.kind) + ":" + NormalizeLibraryName(e.BaseName())
	}
	return string(e.kind) + ":" + strings.ToLower(e.name)
}

// String renders the entry as "kind:name<constraint>".
func (e Entry) String() string {
	return string(e.kind) + ":" + e.name + e.constraint.String()
}

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeLibraryName lowercases and collapses runs of "-", "_" and "."
// into a single "-".
func NormalizeLibraryName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(name), "-")
}

// SplitRequirement splits "name<spec>" at the first comparison operator.
// Environment markers and inline comments are dropped.
func SplitRequirement(requirement string) (name, constraint string) {
	s := requirement
	if i := strings.Index(s, " #"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	if i := strings.IndexAny(s, "=<>!~"); i > 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i:])
	}
	return s, ""
}
