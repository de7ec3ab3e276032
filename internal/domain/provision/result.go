package provision

import (
	"github.com/felixgeelhaar/provisioner/internal/domain/manifest"
)

// Outcome is what happened to one manifest entry during a run.
type Outcome string

const (
	// OutcomeSkipped means the entry was already satisfied.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeInstalled means the installer succeeded (and, for binaries,
	// the executable resolves afterwards).
	OutcomeInstalled Outcome = "installed"
	// OutcomeFailed means installation or verification failed.
	OutcomeFailed Outcome = "failed"
)

// DetailTimeout is the failure detail of an install call that ran past its deadline.
const DetailTimeout = "timeout"

// DetailVerificationFailed is the failure detail of a binary that installed
// but does not resolve on the execution path.
const DetailVerificationFailed = "post-install verification failed"

// InstallResult records the outcome for one entry. It is a value type;
// re-marking produces a new result.
type InstallResult struct {
	entry   manifest.Entry
	outcome Outcome
	detail  string
	err     error
}

// Skipped creates a result for an already satisfied entry.
func Skipped(entry manifest.Entry) InstallResult {
	return InstallResult{entry: entry, outcome: OutcomeSkipped, detail: "already satisfied"}
}

// Installed creates a successful result.
func Installed(entry manifest.Entry, detail string) InstallResult {
	return InstallResult{entry: entry, outcome: OutcomeInstalled, detail: detail}
}

// Failed creates a failed result. err should be an *InstallFailure or
// *VerificationFailure; its message becomes the detail.
func Failed(entry manifest.Entry, err error) InstallResult {
	r := InstallResult{entry: entry, outcome: OutcomeFailed, err: err}
	if err != nil {
		r.detail = err.Error()
	}
	return r
}

// Entry returns the manifest entry this result is for.
func (r InstallResult) Entry() manifest.Entry {
	return r.entry
}

// Outcome returns the outcome.
func (r InstallResult) Outcome() Outcome {
	return r.outcome
}

// Detail returns the human-readable detail, possibly empty.
func (r InstallResult) Detail() string {
	return r.detail
}

// Err returns the typed failure for failed results, nil otherwise.
func (r InstallResult) Err() error {
	return r.err
}

// IsFailed reports whether the outcome is failed.
func (r InstallResult) IsFailed() bool {
	return r.outcome == OutcomeFailed
}

// Status is the overall outcome of a run.
type Status string

const (
	// StatusOK means no entry failed.
	StatusOK Status = "ok"
	// StatusDegraded means at least one entry failed.
	StatusDegraded Status = "degraded"
)

// OverallStatus is ok when no result failed.
func OverallStatus(results []InstallResult) Status {
	for i := range results {
		if results[i].IsFailed() {
			return StatusDegraded
		}
	}
	return StatusOK
}

// ExitCode maps a status to a process exit code.
func (s Status) ExitCode() int {
	if s == StatusOK {
		return 0
	}
	return 1
}

// Summary counts results by outcome.
type Summary struct {
	Total     int
	Skipped   int
	Installed int
	Failed    int
}

// Summarize counts results by outcome.
func Summarize(results []InstallResult) Summary {
	s := Summary{Total: len(results)}
	for i := range results {
		switch results[i].Outcome() {
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeInstalled:
			s.Installed++
		case OutcomeFailed:
			s.Failed++
		}
	}
	return s
}
