package app

import (
	"encoding/json"
	"io"

	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
	"github.com/felixgeelhaar/provisioner/internal/domain/provision"
)

// Report is the outcome of one run, ready for printing or JSON encoding.
type Report struct {
	Manifest string           `json:"manifest,omitempty"`
	Status   provision.Status `json:"status"`
	Summary  ReportSummary    `json:"summary"`
	Results  []ReportEntry    `json:"results"`

	results []provision.InstallResult
}

// ReportSummary counts results by outcome.
type ReportSummary struct {
	Total     int `json:"total"`
	Skipped   int `json:"skipped"`
	Installed int `json:"installed"`
	Failed    int `json:"failed"`
}

// ReportEntry is one result.
type ReportEntry struct {
	Name       string            `json:"name"`
	Kind       manifest.Kind     `json:"kind"`
	Constraint string            `json:"constraint,omitempty"`
	Outcome    provision.Outcome `json:"outcome"`
	Detail     string            `json:"detail,omitempty"`
}

// NewReport builds a report from run results.
func NewReport(m *manifest.Manifest, results []provision.InstallResult, status provision.Status) *Report {
	s := provision.Summarize(results)
	r := &Report{
		Status: status,
		Summary: ReportSummary{
			Total:     s.Total,
			Skipped:   s.Skipped,
			Installed: s.Installed,
			Failed:    s.Failed,
		},
		Results: make([]ReportEntry, 0, len(results)),
		results: results,
	}
	if m != nil {
		r.Manifest = m.Source()
	}
	for _, res := range results {
		r.Results = append(r.Results, ReportEntry{
			Name:       res.Entry().Name(),
			Kind:       res.Entry().Kind(),
			Constraint: res.Entry().Constraint(),
			Outcome:    res.Outcome(),
			Detail:     res.Detail(),
		})
	}
	return r
}

// InstallResults returns the underlying results.
func (r *Report) InstallResults() []provision.InstallResult {
	return r.results
}

// ExitCode is 0 for ok runs and non-zero otherwise.
func (r *Report) ExitCode() int {
	return r.Status.ExitCode()
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
