package domain

// IssueKind is the diagnostic class of an Issue.
type IssueKind string

const (
	// IssueStructural covers duplicate and orphan keys.
	IssueStructural IssueKind = "structural_violation"
	// IssueDataQuality covers implausible values and out-of-range ratios.
	IssueDataQuality IssueKind = "data_quality_warning"
	// IssueInformational carries reported statistics that are never enforced.
	IssueInformational IssueKind = "informational"
)

// Issue codes
const (
	CodeDuplicateKey          = "duplicate_key"
	CodeOrphanKey             = "orphan_key"
	CodeDuplicateObservation  = "duplicate_observation"
	CodeEmptySeries           = "empty_series"
	CodeLowEmployment         = "low_employment"
	CodeImplausibleProduct    = "implausible_productivity"
	CodeMissingTurnover       = "missing_turnover"
	CodeEmploymentTurnoverCor = "employment_turnover_correlation"
	CodeNegativeTotal         = "negative_total"
	CodeFirmCountExceedsObs   = "firm_count_exceeds_observations"
	CodeNonFiniteMean         = "non_finite_mean"
)

// Issue is one diagnostic finding raised by validation or consistency checks.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Code    string    `json:"code"`
	Stage   string    `json:"stage"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message"`
	Count   int       `json:"count"`
	Keys    []string  `json:"keys,omitempty"`
	Value   *float64  `json:"value,omitempty"`
}

// Policy decides whether enforced issues abort a run.
type Policy string

const (
	PolicyWarn  Policy = "warn"
	PolicyAbort Policy = "abort"
)

// Report collects the issues raised by one check.
type Report struct {
	Stage  string  `json:"stage"`
	Issues []Issue `json:"issues"`
}

// Add appends an issue, stamping it with the report stage.
func (r *Report) Add(issue Issue) {
	if issue.Stage == "" {
		issue.Stage = r.Stage
	}
	r.Issues = append(r.Issues, issue)
}

// Merge appends the issues of other.
func (r *Report) Merge(other Report) {
	r.Issues = append(r.Issues, other.Issues...)
}

// Count returns the number of issues of the given kind.
func (r Report) Count(kind IssueKind) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			n++
		}
	}
	return n
}

// Enforced returns the issues a strict policy acts on. Informational
// issues are never enforced.
func (r Report) Enforced() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Kind != IssueInformational {
			out = append(out, issue)
		}
	}
	return out
}
