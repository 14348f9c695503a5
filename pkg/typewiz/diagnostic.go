package typewiz

import "sort"

// Diagnostic is immutable after construction. RawPayload carries the
// engine's original record (already-parsed JSON or the matched regex
// groups) for callers that need engine-specific detail beyond the
// normalised fields.
type Diagnostic struct {
	Tool       ToolName
	Severity   Severity
	Path       string // repo-relative, POSIX separators
	Line       int    // 1-based
	Column     int    // 1-based; 0 when unknown
	Rule       string // optional diagnostic/rule code
	Message    string
	RawPayload any
}

// SortDiagnostics orders diagnostics by (path, line, column), the stable
// rendering and manifest-serialization order spec §3/§5 require.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// SeverityCounts tallies diagnostics per severity bucket plus a total.
type SeverityCounts struct {
	Errors      int
	Warnings    int
	Information int
}

// Total returns the sum across all severities.
func (c SeverityCounts) Total() int {
	return c.Errors + c.Warnings + c.Information
}

// Add increments the bucket matching sev.
func (c *SeverityCounts) Add(sev Severity) {
	switch sev {
	case SeverityError:
		c.Errors++
	case SeverityWarning:
		c.Warnings++
	default:
		c.Information++
	}
}

// Get returns the count for a single severity.
func (c SeverityCounts) Get(sev Severity) int {
	switch sev {
	case SeverityError:
		return c.Errors
	case SeverityWarning:
		return c.Warnings
	default:
		return c.Information
	}
}
