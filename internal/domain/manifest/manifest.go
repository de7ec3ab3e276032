package manifest

import "fmt"

// Manifest is an ordered, duplicate-free list of entries plus run options.
// Declaration order is the install order.
type Manifest struct {
	source            string
	entries           []Entry
	index             map[string]int
	upgradeInstallers bool
}

// New creates a manifest from entries in declaration order.
func New(entries ...Entry) (*Manifest, error) {
	m := &Manifest{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if err := m.Add(e); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on duplicates.
func MustNew(entries ...Entry) *Manifest {
	m, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return m
}

// Add appends an entry. Declaring the same dependency twice is an error.
func (m *Manifest) Add(e Entry) error {
	if e.Name() == "" {
		return fmt.Errorf("entry name cannot be empty")
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	key := e.Key()
	if pos, ok := m.index[key]; ok {
		return NewUserError(ErrCodeEntryDuplicate, fmt.Sprintf("%s %q declared more than once", e.Kind(), e.Name())).
			WithContext(fmt.Sprintf("entries %d and %d", pos+1, len(m.entries)+1)).
			WithSuggestion("Remove one declaration or merge their version constraints")
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of the entries in declaration order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Source returns the file the manifest was loaded from, if any.
func (m *Manifest) Source() string {
	return m.source
}

// UpgradeInstallers reports whether package managers should upgrade
// themselves before the first install of a run.
func (m *Manifest) UpgradeInstallers() bool {
	return m.upgradeInstallers
}

// WithUpgradeInstallers returns a copy with the option set.
func (m *Manifest) WithUpgradeInstallers(enabled bool) *Manifest {
	c := m.clone()
	c.upgradeInstallers = enabled
	return c
}

// WithSource returns a copy that records where it was loaded from.
func (m *Manifest) WithSource(source string) *Manifest {
	c := m.clone()
	c.source = source
	return c
}

// CountByKind returns how many entries of each kind are declared.
func (m *Manifest) CountByKind() map[Kind]int {
	counts := make(map[Kind]int, 2)
	for _, e := range m.entries {
		counts[e.Kind()]++
	}
	return counts
}

func (m *Manifest) clone() *Manifest {
	c := &Manifest{
		source:            m.source,
		entries:           m.Entries(),
		index:             make(map[string]int, len(m.index)),
		upgradeInstallers: m.upgradeInstallers,
	}
	for k, v := range m.index {
		c.index[k] = v
	}
	return c
}
