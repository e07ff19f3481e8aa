package models

// GitLabReport is the top-level shape of a GitLab security scan artifact
// (gl-sast-report.json / gl-dast-report.json). Only the fields the converter
// reads are declared; everything else in the report is ignored.
type GitLabReport struct {
	Version         string                 `json:"version"`
	Vulnerabilities []GitLabVulnerability  `json:"vulnerabilities"`
	Scan            map[string]interface{} `json:"scan,omitempty"`
}

// GitLabVulnerability is one scanner-native finding inside a GitLab report.
type GitLabVulnerability struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Severity    string         `json:"severity"`
	Solution    string         `json:"solution"`
	Location    GitLabLocation `json:"location"`
}

// GitLabLocation points at the code or URL where the scanner observed the issue.
type GitLabLocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	Hostname  string `json:"hostname"`
	Path      string `json:"path"`
}

// RejectedFinding is one finding the write API refused, with the reason it gave.
type RejectedFinding struct {
	ID           string `json:"id"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// ImportResult reports the per-item outcome of submitting converted findings.
// Partial rejection is the expected shape here: Accepted and Rejected are
// always reported separately and never collapsed into a single boolean.
type ImportResult struct {
	Accepted []string          `json:"accepted"`
	Rejected []RejectedFinding `json:"rejected"`
}

// Partial returns true when the write API accepted some findings and
// rejected others in the same run.
func (r *ImportResult) Partial() bool {
	return len(r.Accepted) > 0 && len(r.Rejected) > 0
}
