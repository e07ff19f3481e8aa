package models

import "time"

// ControlStatus is the resolved compliance status of a Normalized Row.
// Every row carries exactly one of these values; a row with an empty status
// is a transformer bug.
type ControlStatus string

const (
	// StatusPass: the underlying automated check reported compliant.
	StatusPass ControlStatus = "pass"
	// StatusFail: the underlying automated check reported non-compliant.
	StatusFail ControlStatus = "fail"
	// StatusManual: no automated evidence exists (unmapped criterion, empty
	// evidence window, or evidence that needs human review).
	StatusManual ControlStatus = "manual"
	// StatusNotApplicable: the check is explicitly disabled or out of scope.
	StatusNotApplicable ControlStatus = "not-applicable"
)

// Severity represents the impact level attached to a control or finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFORMATIONAL"
)

// SeverityRank maps a severity label onto a sortable numeric weight.
// Unknown labels rank 0, the same as INFORMATIONAL.
func SeverityRank(sev Severity) int {
	switch sev {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// NormalizedRow is the flattened, tabular projection of one Evidence Record
// (or, for manual placeholders, of one Control Mapping entry that produced
// no automated evidence). It is the unit the exporter renders.
type NormalizedRow struct {
	ControlID   string         `json:"control_id"`
	ControlName string         `json:"control_name"`
	ResourceID  string         `json:"resource_id"`
	Status      ControlStatus  `json:"status"`
	Severity    Severity       `json:"severity"`
	Timestamp   time.Time      `json:"timestamp"`
	Source      EvidenceSource `json:"source"`
	CheckID     string         `json:"check_id"`
	Detail      string         `json:"detail,omitempty"`

	// Derived reporting columns.
	SeverityRank int    `json:"severity_rank"`
	AgeDays      int    `json:"age_days"`
	SLABreach    bool   `json:"sla_breach"`
	Owner        string `json:"owner,omitempty"`
	Environment  string `json:"environment,omitempty"`
}

// ReportSummary aggregates row counts by status for the executive view.
type ReportSummary struct {
	TotalRows         int     `json:"total_rows"`
	TotalControls     int     `json:"total_controls"`
	PassRows          int     `json:"pass_rows"`
	FailRows          int     `json:"fail_rows"`
	ManualRows        int     `json:"manual_rows"`
	NotApplicableRows int     `json:"not_applicable_rows"`
	ComplianceRate    float64 `json:"compliance_rate_pct"`
}

// Summarize computes a ReportSummary over rows. The compliance rate is the
// share of distinct controls whose rows contain no failure, over controls
// that produced at least one pass or fail row.
func Summarize(rows []NormalizedRow) ReportSummary {
	s := ReportSummary{TotalRows: len(rows)}

	controls := make(map[string]bool) // control id -> has at least one fail
	automated := make(map[string]bool)
	seen := make(map[string]bool)

	for _, row := range rows {
		seen[row.ControlID] = true
		switch row.Status {
		case StatusPass:
			s.PassRows++
			automated[row.ControlID] = true
		case StatusFail:
			s.FailRows++
			automated[row.ControlID] = true
			controls[row.ControlID] = true
		case StatusManual:
			s.ManualRows++
		case StatusNotApplicable:
			s.NotApplicableRows++
		}
	}

	s.TotalControls = len(seen)

	passing := 0
	for id := range automated {
		if !controls[id] {
			passing++
		}
	}
	if len(automated) > 0 {
		s.ComplianceRate = float64(passing) / float64(len(automated)) * 100
	}
	return s
}

// RunResult is the outcome of one pipeline run: where the artifact landed,
// what it contains, and which sources contributed or failed.
type RunResult struct {
	ReportID     string            `json:"report_id"`
	GeneratedAt  time.Time         `json:"generated_at"`
	AccountID    string            `json:"account_id"`
	Region       string            `json:"region"`
	WindowDays   int               `json:"window_days"`
	ArtifactPath string            `json:"artifact_path"`
	DownloadURL  string            `json:"download_url,omitempty"`
	Summary      ReportSummary     `json:"summary"`
	FailedRows   []NormalizedRow   `json:"failed_rows,omitempty"`
	SourceErrors map[string]string `json:"source_errors,omitempty"`
	Notified     bool              `json:"notified"`
	NotifyError  string            `json:"notify_error,omitempty"`
}
