package provision

import "github.com/felixgeelhaar/provisioner/internal/domain/manifest"

// PlanItem is one manifest entry together with its check outcome.
type PlanItem struct {
	Entry     manifest.Entry
	Satisfied bool
}

// InstallPlan is the ordered set of entries that need installing. It also
// keeps the satisfied entries so a run can report them in manifest order.
type InstallPlan struct {
	items []PlanItem
}

// NewInstallPlan creates a plan from checked items in manifest order.
func NewInstallPlan(items ...PlanItem) *InstallPlan {
	p := &InstallPlan{items: make([]PlanItem, len(items))}
	copy(p.items, items)
	return p
}

// Entries returns the entries requiring action, in manifest order.
func (p *InstallPlan) Entries() []manifest.Entry {
	if p == nil {
		return nil
	}
	out := make([]manifest.Entry, 0, len(p.items))
	for _, item := range p.items {
		if !item.Satisfied {
			out = append(out, item.Entry)
		}
	}
	return out
}

// Satisfied returns the entries that were already present.
func (p *InstallPlan) Satisfied() []manifest.Entry {
	if p == nil {
		return nil
	}
	out := make([]manifest.Entry, 0, len(p.items))
	for _, item := range p.items {
		if item.Satisfied {
			out = append(out, item.Entry)
		}
	}
	return out
}

// Items returns every checked entry in manifest order.
func (p *InstallPlan) Items() []PlanItem {
	if p == nil {
		return nil
	}
	out := make([]PlanItem, len(p.items))
	copy(out, p.items)
	return out
}

// Len returns the number of entries requiring action.
func (p *InstallPlan) Len() int {
	return len(p.Entries())
}

// IsEmpty reports whether nothing needs installing.
func (p *InstallPlan) IsEmpty() bool {
	return p.Len() == 0
}

// Kinds returns the distinct kinds that need installing, in first-seen order.
func (p *InstallPlan) Kinds() []manifest.Kind {
	seen := make(map[manifest.Kind]bool, 2)
	kinds := make([]manifest.Kind, 0, 2)
	for _, e := range p.Entries() {
		if !seen[e.Kind()] {
			seen[e.Kind()] = true
			kinds = append(kinds, e.Kind())
		}
	}
	return kinds
}
