package transform

import (
	"time"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// slaDays is the remediation SLA per severity rank. A failing row older than
// its SLA is flagged as a breach in the derived columns.
var slaDays = map[int]int{
	4: 1,   // CRITICAL
	3: 7,   // HIGH
	2: 30,  // MEDIUM
	1: 90,  // LOW
	0: 365, // INFORMATIONAL
}

// finishRow fills the derived reporting columns: severity rank, age, SLA
// breach, and the owner/environment tags when the resource carries them.
func finishRow(row *models.NormalizedRow, attrs map[string]string, now time.Time) {
	row.SeverityRank = models.SeverityRank(row.Severity)

	if !row.Timestamp.IsZero() {
		row.AgeDays = int(now.Sub(row.Timestamp).Hours() / 24)
		if row.AgeDays < 0 {
			row.AgeDays = 0
		}
	}
	row.SLABreach = row.Status == models.StatusFail && row.AgeDays > slaDays[row.SeverityRank]

	row.Owner = tagValue(attrs, "Owner", "owner", "Team", "team")
	row.Environment = tagValue(attrs, "Environment", "Env", "Stage")
}

// severityFromAttributes reads the severity a source attached to unmapped
// evidence (Security Hub findings carry one). Unknown labels fall back to
// INFORMATIONAL.
func severityFromAttributes(attrs map[string]string) models.Severity {
	switch models.Severity(attrs["severity"]) {
	case models.SeverityCritical:
		return models.SeverityCritical
	case models.SeverityHigh:
		return models.SeverityHigh
	case models.SeverityMedium:
		return models.SeverityMedium
	case models.SeverityLow:
		return models.SeverityLow
	default:
		return models.SeverityInfo
	}
}

// tagValue returns the first matching resource tag from attrs, trying each
// key in order. Collectors store resource tags under "tag:<Key>".
func tagValue(attrs map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := attrs["tag:"+key]; ok {
			return v
		}
	}
	return ""
}
