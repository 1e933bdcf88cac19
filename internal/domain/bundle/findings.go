package bundle

import "fmt"

// FindingKind classifies a single verification discrepancy.
type FindingKind string

const (
	// FindingMissing marks a manifest entry with no file on disk.
	FindingMissing FindingKind = "missing file"
	// FindingSizeMismatch marks a file whose size differs from the manifest.
	FindingSizeMismatch FindingKind = "size mismatch"
	// FindingHashMismatch marks a file whose digest differs from the manifest.
	FindingHashMismatch FindingKind = "hash mismatch"
	// FindingExtraFile marks a payload file absent from the manifest.
	FindingExtraFile FindingKind = "unexpected extra file"
)

// Finding is one detected discrepancy between manifest and payload.
type Finding struct {
	// Kind classifies the discrepancy.
	Kind FindingKind
	// Path is the payload-relative path of the affected file.
	Path string
	// Detail carries expected/actual values where applicable.
	Detail string
}

// String renders the finding as one human-readable report line.
func (f Finding) String() string {
	if f.Detail == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Path)
	}

	return fmt.Sprintf("%s: %s (%s)", f.Kind, f.Path, f.Detail)
}

// Report aggregates the outcome of one verification run. Findings are
// accumulated, never short-circuited, so a single run surfaces every
// problem in the bundle.
type Report struct {
	// Checked is the number of manifest entries processed.
	Checked int
	// Findings are the detected discrepancies, in detection order.
	Findings []Finding
}

// Add appends a finding to the report.
func (r *Report) Add(kind FindingKind, path, detail string) {
	r.Findings = append(r.Findings, Finding{
		Kind:   kind,
		Path:   path,
		Detail: detail,
	})
}

// OK reports whether the run produced zero findings.
func (r *Report) OK() bool {
	return len(r.Findings) == 0
}

// CountByKind returns the number of findings of the provided kind.
func (r *Report) CountByKind(kind FindingKind) int {
	var count int

	for _, finding := range r.Findings {
		if finding.Kind == kind {
			count++
		}
	}

	return count
}
