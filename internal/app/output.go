package app

import (
	"fmt"

	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
	"github.com/felixgeelhaar/provisioner/internal/domain/provision"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PrintPlan outputs a human-readable plan summary.
func (a *App) PrintPlan(m *manifest.Manifest, plan *provision.InstallPlan) {
	a.printf("\n%s\n", a.styles.Title.Render("Provisioning Plan"))
	a.printf("=================\n\n")

	if m != nil && m.Source() != "" {
		a.printf("Manifest: %s\n", m.Source())
	}

	items := plan.Items()
	a.printf("Entries: %d total, %d to install, %d satisfied\n\n",
		len(items), plan.Len(), len(items)-plan.Len())

	for _, item := range items {
		mark := a.styles.Success.Render("✓")
		if !item.Satisfied {
			mark = a.styles.Warning.Render("+")
		}
		a.printf("  %s %s\n", mark, item.Entry.String())
	}

	if plan.IsEmpty() {
		a.printf("\nNothing to install. The environment is up to date.\n")
		return
	}
	if m != nil && m.UpgradeInstallers() {
		a.printf("\nInstallers will upgrade themselves first.\n")
	}
	a.printf("\nRun 'provisioner run' to install the missing entries.\n")
}

// PrintResults outputs the outcome of a run.
func (a *App) PrintResults(report *Report) {
	a.printf("\n%s\n", a.styles.Title.Render("Provisioning Results"))
	a.printf("====================\n\n")

	for _, r := range report.Results {
		name := fmt.Sprintf("%s:%s%s", r.Kind, r.Name, r.Constraint)
		switch r.Outcome {
		case provision.OutcomeInstalled:
			a.printf("  %s %s\n", a.styles.Success.Render("✓"), name)
		case provision.OutcomeFailed:
			a.printf("  %s %s: %s\n", a.styles.Error.Render("✗"), name, r.Detail)
		case provision.OutcomeSkipped:
			a.printf("  %s %s %s\n", a.styles.Muted.Render("-"), name, a.styles.Muted.Render("(already satisfied)"))
		}
	}

	s := report.Summary
	a.printf("\nSummary: %d %s, %d %s, %d %s\n",
		s.Installed, outcomeLabel(provision.OutcomeInstalled),
		s.Failed, outcomeLabel(provision.OutcomeFailed),
		s.Skipped, outcomeLabel(provision.OutcomeSkipped),
	)

	status := title(string(report.Status))
	if report.Status == provision.StatusOK {
		a.printf("Status: %s\n", a.styles.Success.Render(status))
		return
	}
	a.printf("Status: %s\n", a.styles.Error.Render(status))
}

// PrintValidation outputs a validation result.
func (a *App) PrintValidation(result *ValidationResult) {
	for _, msg := range result.Info {
		a.printf("  %s\n", msg)
	}
	for _, msg := range result.Warnings {
		a.printf("  %s %s\n", a.styles.Warning.Render("!"), msg)
	}
	for _, msg := range result.Errors {
		a.printf("  %s %s\n", a.styles.Error.Render("✗"), msg)
	}
	if result.Valid() {
		a.printf("\n%s\n", a.styles.Success.Render("Manifest is valid."))
	}
}

func outcomeLabel(o provision.Outcome) string {
	return title(string(o))
}

// title capitalizes s. A Caser keeps state, so one is made per call.
func title(s string) string {
	return cases.Title(language.English).String(s)
}
