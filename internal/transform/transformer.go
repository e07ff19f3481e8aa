// Package transform turns raw per-source evidence into the fixed-column
// Normalized Rows the exporter renders. All status resolution against the
// control mapping happens here and nowhere else.
package transform

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fafo-security/grc-pipeline/internal/mapping"
	"github.com/fafo-security/grc-pipeline/internal/models"
)

// Transformer flattens Evidence Records and resolves each row's control
// status through the Control Mapping. It holds no mutable state: Transform
// on identical input yields byte-identical output in identical order.
type Transformer struct {
	mapping *mapping.ControlMapping
	now     time.Time
	log     *logrus.Logger
}

// New returns a Transformer bound to the given mapping. now anchors the
// derived age/SLA columns; the engine passes one timestamp per run so all
// rows agree on it.
func New(m *mapping.ControlMapping, now time.Time, log *logrus.Logger) *Transformer {
	return &Transformer{mapping: m, now: now.UTC(), log: log}
}

// Transform produces the run's Normalized Rows:
//
//   - one row per (evidence record, mapped control) pair, so a check serving
//     several criteria contributes status to each of them;
//   - rows for unmapped checks keep the check ID as their control ID rather
//     than being dropped;
//   - one placeholder row per mapping control that produced no evidence,
//     tagged manual (or not-applicable when the control is disabled) with
//     the reason preserved.
//
// Output ordering is deterministic: control ID, resource ID, source, check ID.
func (t *Transformer) Transform(set *models.EvidenceSet) []models.NormalizedRow {
	var rows []models.NormalizedRow
	covered := make(map[string]bool)

	for _, result := range set.Results {
		for _, record := range result.Records {
			for _, row := range t.rowsForRecord(record) {
				covered[row.ControlID] = true
				rows = append(rows, row)
			}
		}
	}

	// Every criterion in the mapping appears in the report, evidence or not.
	for _, control := range t.mapping.Controls {
		if covered[control.ID] {
			continue
		}
		rows = append(rows, t.placeholderRow(control))
	}

	sortRows(rows)
	return rows
}

// rowsForRecord resolves one Evidence Record against the mapping. A record
// whose check serves several controls yields one row per control.
func (t *Transformer) rowsForRecord(record models.EvidenceRecord) []models.NormalizedRow {
	controls, ok := t.mapping.Resolve(record.Source, record.CheckID)
	if !ok {
		// Unmapped evidence is kept, not dropped: the check ID stands in
		// for the control so the row remains traceable.
		t.log.WithFields(logrus.Fields{
			"source": record.Source,
			"check":  record.CheckID,
		}).Debug("evidence check not in control mapping")
		row := t.baseRow(record)
		row.ControlID = record.CheckID
		row.ControlName = "(unmapped check)"
		row.Severity = severityFromAttributes(record.Attributes)
		row.Status = statusForEvidence(record.Status)
		finishRow(&row, record.Attributes, t.now)
		return []models.NormalizedRow{row}
	}

	rows := make([]models.NormalizedRow, 0, len(controls))
	for _, control := range controls {
		row := t.baseRow(record)
		row.ControlID = control.ID
		row.ControlName = control.Name
		row.Severity = control.Severity
		if control.Disabled {
			row.Status = models.StatusNotApplicable
			row.Detail = disabledDetail(control.Reason)
		} else {
			row.Status = statusForEvidence(record.Status)
		}
		finishRow(&row, record.Attributes, t.now)
		rows = append(rows, row)
	}
	return rows
}

// baseRow copies the record fields every row shares.
func (t *Transformer) baseRow(record models.EvidenceRecord) models.NormalizedRow {
	return models.NormalizedRow{
		ResourceID: record.ResourceID,
		Timestamp:  record.Timestamp,
		Source:     record.Source,
		CheckID:    record.CheckID,
		Detail:     record.Attributes["detail"],
	}
}

// placeholderRow synthesises the row for a control that produced no evidence
// this run. The status explains why there is no automated result.
func (t *Transformer) placeholderRow(control mapping.Control) models.NormalizedRow {
	row := models.NormalizedRow{
		ControlID:   control.ID,
		ControlName: control.Name,
		ResourceID:  "N/A",
		Severity:    control.Severity,
		Timestamp:   t.now,
	}
	switch {
	case control.Disabled:
		row.Status = models.StatusNotApplicable
		row.Detail = disabledDetail(control.Reason)
	case len(control.Checks) == 0:
		row.Status = models.StatusManual
		row.Detail = "manual evidence required (no automated check mapped)"
	default:
		row.Status = models.StatusManual
		row.Detail = "no automated evidence returned in window"
	}
	finishRow(&row, nil, t.now)
	return row
}

// statusForEvidence maps the raw evidence signal onto a control status.
// UNKNOWN evidence (CloudTrail events, empty compliance checks) needs a
// human to interpret it, so it resolves to manual.
func statusForEvidence(status models.EvidenceStatus) models.ControlStatus {
	switch status {
	case models.EvidencePass:
		return models.StatusPass
	case models.EvidenceFail:
		return models.StatusFail
	default:
		return models.StatusManual
	}
}

func disabledDetail(reason string) string {
	if reason == "" {
		return "check disabled in control mapping"
	}
	return "check disabled: " + reason
}

// sortRows orders rows deterministically so identical input always produces
// an identical artifact.
func sortRows(rows []models.NormalizedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ControlID != b.ControlID {
			return a.ControlID < b.ControlID
		}
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.CheckID < b.CheckID
	})
}
