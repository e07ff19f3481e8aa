package transform

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fafo-security/grc-pipeline/internal/mapping"
	"github.com/fafo-security/grc-pipeline/internal/models"
)

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newMapping(t *testing.T, controls ...mapping.Control) *mapping.ControlMapping {
	t.Helper()
	m := &mapping.ControlMapping{Version: 1, Controls: controls}
	require.NoError(t, m.Init())
	return m
}

func evidenceSet(results ...models.SourceResult) *models.EvidenceSet {
	return &models.EvidenceSet{Results: results}
}

func configRecord(rule, resource string, status models.EvidenceStatus, ts time.Time) models.EvidenceRecord {
	return models.EvidenceRecord{
		Source:     models.SourceConfig,
		CheckID:    rule,
		ResourceID: resource,
		Status:     status,
		Timestamp:  ts,
	}
}

// ── status resolution ─────────────────────────────────────────────────────────

func TestTransform_ConfigEvaluations(t *testing.T) {
	m := newMapping(t, mapping.Control{
		ID:       "AC-2",
		Name:     "Account Management",
		Severity: models.SeverityHigh,
		Checks:   []mapping.CheckRef{{Source: models.SourceConfig, ID: "iam-user-mfa-enabled"}},
	})

	set := evidenceSet(models.SourceResult{
		Source: models.SourceConfig,
		Records: []models.EvidenceRecord{
			configRecord("iam-user-mfa-enabled", "alice", models.EvidenceFail, testNow),
			configRecord("iam-user-mfa-enabled", "bob", models.EvidencePass, testNow),
			configRecord("iam-user-mfa-enabled", "carol", models.EvidencePass, testNow),
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "AC-2", row.ControlID)
		assert.Equal(t, "Account Management", row.ControlName)
		assert.Equal(t, models.SeverityHigh, row.Severity)
	}
	assert.Equal(t, models.StatusFail, rows[0].Status) // alice
	assert.Equal(t, models.StatusPass, rows[1].Status) // bob
	assert.Equal(t, models.StatusPass, rows[2].Status) // carol
}

func TestTransform_UnknownEvidenceBecomesManual(t *testing.T) {
	m := newMapping(t, mapping.Control{
		ID:     "AU-2",
		Checks: []mapping.CheckRef{{Source: models.SourceCloudTrail, ID: "StopLogging"}},
	})

	set := evidenceSet(models.SourceResult{
		Source: models.SourceCloudTrail,
		Records: []models.EvidenceRecord{
			{Source: models.SourceCloudTrail, CheckID: "StopLogging", ResourceID: "admin", Status: models.EvidenceUnknown, Timestamp: testNow},
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusManual, rows[0].Status)
}

func TestTransform_EveryRowHasAStatus(t *testing.T) {
	m := newMapping(t,
		mapping.Control{ID: "A-1", Checks: []mapping.CheckRef{{Source: models.SourceConfig, ID: "r1"}}},
		mapping.Control{ID: "B-2"},
		mapping.Control{ID: "C-3", Disabled: true},
	)

	set := evidenceSet(models.SourceResult{
		Source: models.SourceConfig,
		Records: []models.EvidenceRecord{
			configRecord("r1", "res-1", models.EvidencePass, testNow),
			configRecord("r1", "res-2", models.EvidenceStatus("GARBAGE"), testNow),
			{Source: models.SourceConfig, CheckID: "not-in-mapping", ResourceID: "res-3"},
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 5)
	for _, row := range rows {
		assert.Contains(t, []models.ControlStatus{
			models.StatusPass, models.StatusFail, models.StatusManual, models.StatusNotApplicable,
		}, row.Status, "row %s/%s carries an invalid status", row.ControlID, row.ResourceID)
	}
}

// ── disabled controls ─────────────────────────────────────────────────────────

func TestTransform_DisabledControlEvidenceIsNotApplicable(t *testing.T) {
	m := newMapping(t, mapping.Control{
		ID:       "SC-7",
		Disabled: true,
		Reason:   "perimeter reviewed quarterly",
		Checks:   []mapping.CheckRef{{Source: models.SourceConfig, ID: "restricted-ssh"}},
	})

	set := evidenceSet(models.SourceResult{
		Source: models.SourceConfig,
		Records: []models.EvidenceRecord{
			configRecord("restricted-ssh", "sg-1234", models.EvidenceFail, testNow),
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusNotApplicable, rows[0].Status)
	assert.Contains(t, rows[0].Detail, "perimeter reviewed quarterly")
}

// ── unmapped evidence ─────────────────────────────────────────────────────────

func TestTransform_UnmappedCheckKeptWithCheckID(t *testing.T) {
	m := newMapping(t, mapping.Control{ID: "A-1", Checks: []mapping.CheckRef{{Source: models.SourceConfig, ID: "r1"}}})

	set := evidenceSet(models.SourceResult{
		Source: models.SourceSecurityHub,
		Records: []models.EvidenceRecord{
			{
				Source:     models.SourceSecurityHub,
				CheckID:    "aws-foundational-security-best-practices/v/1.0.0/S3.4",
				ResourceID: "arn:aws:s3:::data-bucket",
				Status:     models.EvidenceFail,
				Timestamp:  testNow,
				Attributes: map[string]string{"severity": "CRITICAL"},
			},
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	var unmapped *models.NormalizedRow
	for i := range rows {
		if rows[i].ControlName == "(unmapped check)" {
			unmapped = &rows[i]
		}
	}
	require.NotNil(t, unmapped, "unmapped evidence must not be dropped")
	assert.Equal(t, "aws-foundational-security-best-practices/v/1.0.0/S3.4", unmapped.ControlID)
	assert.Equal(t, models.StatusFail, unmapped.Status)
	assert.Equal(t, models.SeverityCritical, unmapped.Severity)
}

func TestTransform_UnmappedSeverityDefaultsToInformational(t *testing.T) {
	m := newMapping(t)

	set := evidenceSet(models.SourceResult{
		Source: models.SourceSecurityHub,
		Records: []models.EvidenceRecord{
			{Source: models.SourceSecurityHub, CheckID: "some-check", Status: models.EvidenceFail, Timestamp: testNow},
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 1)
	assert.Equal(t, models.SeverityInfo, rows[0].Severity)
}

// ── fan-out ───────────────────────────────────────────────────────────────────

func TestTransform_SharedCheckFansOutToEachControl(t *testing.T) {
	m := newMapping(t,
		mapping.Control{ID: "A-1", Severity: models.SeverityHigh, Checks: []mapping.CheckRef{{Source: models.SourceConfig, ID: "shared"}}},
		mapping.Control{ID: "B-2", Severity: models.SeverityLow, Checks: []mapping.CheckRef{{Source: models.SourceConfig, ID: "shared"}}},
	)

	set := evidenceSet(models.SourceResult{
		Source:  models.SourceConfig,
		Records: []models.EvidenceRecord{configRecord("shared", "res-1", models.EvidenceFail, testNow)},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 2)
	assert.Equal(t, "A-1", rows[0].ControlID)
	assert.Equal(t, models.SeverityHigh, rows[0].Severity)
	assert.Equal(t, "B-2", rows[1].ControlID)
	assert.Equal(t, models.SeverityLow, rows[1].Severity)
}

// ── placeholder rows ──────────────────────────────────────────────────────────

func TestTransform_ManualControlGetsPlaceholder(t *testing.T) {
	m := newMapping(t, mapping.Control{ID: "CP-9", Name: "System Backup", Severity: models.SeverityMedium})

	rows := New(m, testNow, quietLogger()).Transform(evidenceSet())

	require.Len(t, rows, 1)
	assert.Equal(t, "CP-9", rows[0].ControlID)
	assert.Equal(t, models.StatusManual, rows[0].Status)
	assert.Contains(t, rows[0].Detail, "manual evidence required")
	assert.Equal(t, "N/A", rows[0].ResourceID)
}

func TestTransform_MappedControlWithoutEvidenceGetsPlaceholder(t *testing.T) {
	m := newMapping(t, mapping.Control{
		ID:     "AC-2",
		Checks: []mapping.CheckRef{{Source: models.SourceConfig, ID: "iam-user-mfa-enabled"}},
	})

	rows := New(m, testNow, quietLogger()).Transform(evidenceSet())

	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusManual, rows[0].Status)
	assert.Contains(t, rows[0].Detail, "no automated evidence returned in window")
}

func TestTransform_DisabledControlWithoutEvidenceIsNotApplicable(t *testing.T) {
	m := newMapping(t, mapping.Control{ID: "SC-7", Disabled: true})

	rows := New(m, testNow, quietLogger()).Transform(evidenceSet())

	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusNotApplicable, rows[0].Status)
}

func TestTransform_NoPlaceholderWhenControlHasEvidence(t *testing.T) {
	m := newMapping(t, mapping.Control{
		ID:     "AC-2",
		Checks: []mapping.CheckRef{{Source: models.SourceConfig, ID: "r1"}},
	})

	set := evidenceSet(models.SourceResult{
		Source:  models.SourceConfig,
		Records: []models.EvidenceRecord{configRecord("r1", "res-1", models.EvidencePass, testNow)},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusPass, rows[0].Status)
}

// ── determinism ───────────────────────────────────────────────────────────────

func TestTransform_DeterministicAcrossRuns(t *testing.T) {
	m := newMapping(t,
		mapping.Control{ID: "AC-2", Checks: []mapping.CheckRef{{Source: models.SourceConfig, ID: "r1"}}},
		mapping.Control{ID: "AU-2", Checks: []mapping.CheckRef{{Source: models.SourceCloudTrail, ID: "StopLogging"}}},
		mapping.Control{ID: "CP-9"},
	)

	set := evidenceSet(
		models.SourceResult{
			Source: models.SourceConfig,
			Records: []models.EvidenceRecord{
				configRecord("r1", "res-b", models.EvidenceFail, testNow),
				configRecord("r1", "res-a", models.EvidencePass, testNow),
			},
		},
		models.SourceResult{
			Source: models.SourceCloudTrail,
			Records: []models.EvidenceRecord{
				{Source: models.SourceCloudTrail, CheckID: "StopLogging", ResourceID: "admin", Status: models.EvidenceUnknown, Timestamp: testNow},
			},
		},
	)

	first := New(m, testNow, quietLogger()).Transform(set)
	second := New(m, testNow, quietLogger()).Transform(set)

	require.Equal(t, first, second, "identical input must produce identical rows")
}

func TestTransform_SortedByControlThenResource(t *testing.T) {
	m := newMapping(t,
		mapping.Control{ID: "B-2", Checks: []mapping.CheckRef{{Source: models.SourceConfig, ID: "r2"}}},
		mapping.Control{ID: "A-1", Checks: []mapping.CheckRef{{Source: models.SourceConfig, ID: "r1"}}},
	)

	set := evidenceSet(models.SourceResult{
		Source: models.SourceConfig,
		Records: []models.EvidenceRecord{
			configRecord("r2", "res-z", models.EvidencePass, testNow),
			configRecord("r1", "res-b", models.EvidencePass, testNow),
			configRecord("r1", "res-a", models.EvidencePass, testNow),
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 3)
	assert.Equal(t, "A-1", rows[0].ControlID)
	assert.Equal(t, "res-a", rows[0].ResourceID)
	assert.Equal(t, "res-b", rows[1].ResourceID)
	assert.Equal(t, "B-2", rows[2].ControlID)
}

// ── derived columns ───────────────────────────────────────────────────────────

func TestFinishRow_SLABreachForOldFailingRow(t *testing.T) {
	m := newMapping(t, mapping.Control{
		ID:       "AC-2",
		Severity: models.SeverityHigh,
		Checks:   []mapping.CheckRef{{Source: models.SourceConfig, ID: "r1"}},
	})

	tenDaysAgo := testNow.Add(-10 * 24 * time.Hour)
	set := evidenceSet(models.SourceResult{
		Source: models.SourceConfig,
		Records: []models.EvidenceRecord{
			configRecord("r1", "res-old", models.EvidenceFail, tenDaysAgo),
			configRecord("r1", "res-new", models.EvidenceFail, testNow),
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 2)
	// HIGH SLA is 7 days; the 10-day-old failure breaches, the fresh one does not.
	assert.Equal(t, 10, rows[1].AgeDays)
	assert.True(t, rows[1].SLABreach, "res-old must breach the 7-day HIGH SLA")
	assert.False(t, rows[0].SLABreach)
}

func TestFinishRow_PassingRowNeverBreachesSLA(t *testing.T) {
	m := newMapping(t, mapping.Control{
		ID:       "AC-2",
		Severity: models.SeverityCritical,
		Checks:   []mapping.CheckRef{{Source: models.SourceConfig, ID: "r1"}},
	})

	set := evidenceSet(models.SourceResult{
		Source: models.SourceConfig,
		Records: []models.EvidenceRecord{
			configRecord("r1", "res-1", models.EvidencePass, testNow.Add(-100*24*time.Hour)),
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 1)
	assert.False(t, rows[0].SLABreach)
}

func TestFinishRow_OwnerAndEnvironmentFromTags(t *testing.T) {
	m := newMapping(t, mapping.Control{
		ID:     "AC-2",
		Checks: []mapping.CheckRef{{Source: models.SourceSecurityHub, ID: "check-1"}},
	})

	set := evidenceSet(models.SourceResult{
		Source: models.SourceSecurityHub,
		Records: []models.EvidenceRecord{
			{
				Source:     models.SourceSecurityHub,
				CheckID:    "check-1",
				ResourceID: "i-1234",
				Status:     models.EvidenceFail,
				Timestamp:  testNow,
				Attributes: map[string]string{
					"tag:Owner":       "platform-team",
					"tag:Environment": "production",
				},
			},
		},
	})

	rows := New(m, testNow, quietLogger()).Transform(set)

	require.Len(t, rows, 1)
	assert.Equal(t, "platform-team", rows[0].Owner)
	assert.Equal(t, "production", rows[0].Environment)
}

func TestSeverityFromAttributes_UnknownLabelFallsBack(t *testing.T) {
	got := severityFromAttributes(map[string]string{"severity": "BANANAS"})
	assert.Equal(t, models.SeverityInfo, got)
}
