package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Constraint is a parsed pip-style version specifier such as ">=0.30,<1"
// or "~=1.4". Clauses are joined with AND. The zero value allows any version.
type Constraint struct {
	raw     string
	clauses []clause
}

type clause struct {
	op       string
	version  string
	wildcard bool
	lower    pipVersion
	upper    pipVersion
}

// pipVersion is a semver core (first three release segments plus any
// pre-release) followed by the release segments semver cannot hold.
type pipVersion struct {
	core     *semver.Version
	tail     []int
	segments int
}

var (
	clauseRegex = regexp.MustCompile(`^(==|!=|>=|<=|~=|>|<)?\s*([0-9][0-9a-zA-Z.*+-]*)$`)

	// preReleaseRegex splits PEP 440 pre-release and dev segments so that
	// "1.0rc1" and "2.0.dev3" become semver pre-releases.
	preReleaseRegex = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)*)[-_.]?(alpha|beta|preview|pre|rc|dev|a|b|c)[-_.]?([0-9]*)(.*)$`)

	postReleaseRegex = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)*)[-_.]?(post|rev|r)[-_.]?([0-9]*)$`)
)

// ParseConstraint parses a constraint. Whitespace-only input yields the
// empty constraint. A bare version is treated as an exact pin.
func ParseConstraint(s string) (Constraint, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Constraint{}, nil
	}

	parts := strings.Split(raw, ",")
	clauses := make([]clause, 0, len(parts))
	normalized := make([]string, 0, len(parts))

	for _, part := range parts {
		m := clauseRegex.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return Constraint{}, fmt.Errorf("invalid version clause %q in %q", strings.TrimSpace(part), raw)
		}
		op, version := m[1], m[2]
		if op == "" {
			op = "=="
		}

		cl, err := newClause(op, version)
		if err != nil {
			return Constraint{}, fmt.Errorf("invalid version clause %q: %w", strings.TrimSpace(part), err)
		}

		clauses = append(clauses, cl)
		normalized = append(normalized, op+version)
	}

	return Constraint{raw: strings.Join(normalized, ","), clauses: clauses}, nil
}

// IsEmpty reports whether the constraint allows every version.
func (c Constraint) IsEmpty() bool {
	return len(c.clauses) == 0
}

// String returns the normalized specifier, e.g. ">=0.30,<1".
func (c Constraint) String() string {
	return c.raw
}

// ExactVersion returns the pinned version when the constraint is a single
// "==" clause without wildcards.
func (c Constraint) ExactVersion() (string, bool) {
	if len(c.clauses) != 1 || c.clauses[0].op != "==" || strings.Contains(c.clauses[0].version, "*") {
		return "", false
	}
	return c.clauses[0].version, true
}

// Allows reports whether version satisfies every clause. An unparseable
// version returns an error and is never allowed. Pre-release versions are
// ordered like any other, so an installed "2.0rc1" satisfies ">=1.0".
func (c Constraint) Allows(version string) (bool, error) {
	if c.IsEmpty() {
		return true, nil
	}

	v, err := parsePipVersion(version)
	if err != nil {
		return false, err
	}

	for _, cl := range c.clauses {
		if !cl.matches(v) {
			return false, nil
		}
	}
	return true, nil
}

func (cl clause) matches(v pipVersion) bool {
	if cl.wildcard {
		in := v.compare(cl.lower) >= 0 && v.compare(cl.upper) < 0
		if cl.op == "==" {
			return in
		}
		return !in
	}

	cmp := v.compare(cl.lower)
	switch cl.op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case "~=":
		return cmp >= 0 && v.compare(cl.upper) < 0
	default:
		return false
	}
}

// newClause resolves the bounds of one pip clause.
func newClause(op, version string) (clause, error) {
	cl := clause{op: op, version: version}

	if strings.Contains(version, "*") {
		if op != "==" && op != "!=" {
			return clause{}, fmt.Errorf("wildcard only allowed with == or !=")
		}
		prefix := strings.TrimSuffix(strings.TrimSuffix(version, "*"), ".")
		if prefix == "" || strings.Contains(prefix, "*") {
			return clause{}, fmt.Errorf("malformed wildcard version %q", version)
		}
		lower, err := parsePipVersion(prefix)
		if err != nil {
			return clause{}, err
		}
		upper, err := parsePipVersion(bumpLast(lower.release()))
		if err != nil {
			return clause{}, err
		}
		cl.wildcard, cl.lower, cl.upper = true, lower, upper
		return cl, nil
	}

	lower, err := parsePipVersion(version)
	if err != nil {
		return clause{}, err
	}
	cl.lower = lower

	if op == "~=" {
		release := lower.release()
		if len(release) < 2 {
			return clause{}, fmt.Errorf("~= requires at least two release segments")
		}
		upper, err := parsePipVersion(bumpLast(release[:len(release)-1]))
		if err != nil {
			return clause{}, err
		}
		cl.upper = upper
	}
	return cl, nil
}

// ParseVersion parses an installed package version, tolerating the PEP 440
// spellings pip reports ("1.0rc1", "2.0.post1", "2024.10.22", "1.2.3.4").
// Release segments past the third are not part of the returned version.
func ParseVersion(version string) (*semver.Version, error) {
	v, err := parsePipVersion(version)
	if err != nil {
		return nil, err
	}
	return v.core, nil
}

func parsePipVersion(version string) (pipVersion, error) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if i := strings.Index(v, "+"); i >= 0 {
		v = v[:i]
	}

	release, pre := v, ""
	if m := postReleaseRegex.FindStringSubmatch(v); m != nil {
		release = m[1]
	} else if m := preReleaseRegex.FindStringSubmatch(v); m != nil {
		release, pre = m[1], m[2]
		if m[3] != "" {
			pre += "." + m[3]
		}
	}

	parts := strings.Split(release, ".")
	out := pipVersion{segments: len(parts)}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	for _, seg := range parts[3:] {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return pipVersion{}, fmt.Errorf("invalid version %q: non-numeric release segment %q", version, seg)
		}
		out.tail = append(out.tail, n)
	}

	core := strings.Join(parts[:3], ".")
	if pre != "" {
		core += "-" + pre
	}
	sv, err := semver.NewVersion(core)
	if err != nil {
		return pipVersion{}, fmt.Errorf("invalid version %q: %w", version, err)
	}
	out.core = sv
	return out, nil
}

// release returns the release segments as written, e.g. [1 4] for "1.4".
func (v pipVersion) release() []int {
	all := append([]int{int(v.core.Major()), int(v.core.Minor()), int(v.core.Patch())}, v.tail...)
	if v.segments < len(all) {
		return all[:v.segments]
	}
	return all
}

// compare orders by every release segment, missing ones counting as zero,
// and then by pre-release.
func (v pipVersion) compare(o pipVersion) int {
	a := append([]int{int(v.core.Major()), int(v.core.Minor()), int(v.core.Patch())}, v.tail...)
	b := append([]int{int(o.core.Major()), int(o.core.Minor()), int(o.core.Patch())}, o.tail...)
	for i := 0; i < len(a) || i < len(b); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return v.core.Compare(o.core)
}

// bumpLast increments the last release segment: [1 4] -> "1.5".
func bumpLast(release []int) string {
	parts := make([]string, len(release))
	for i, n := range release {
		parts[i] = strconv.Itoa(n)
	}
	parts[len(parts)-1] = strconv.Itoa(release[len(release)-1] + 1)
	return strings.Join(parts, ".")
}
