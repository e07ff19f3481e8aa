package models

import "testing"

func row(controlID string, status ControlStatus) NormalizedRow {
	return NormalizedRow{ControlID: controlID, Status: status}
}

// ── Summarize ─────────────────────────────────────────────────────────────────

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalRows != 0 || s.TotalControls != 0 {
		t.Errorf("empty summary = %+v; want zeros", s)
	}
	if s.ComplianceRate != 0 {
		t.Errorf("ComplianceRate = %.1f; want 0 with no automated controls", s.ComplianceRate)
	}
}

func TestSummarize_CountsByStatus(t *testing.T) {
	s := Summarize([]NormalizedRow{
		row("A-1", StatusPass),
		row("A-1", StatusPass),
		row("B-2", StatusFail),
		row("C-3", StatusManual),
		row("D-4", StatusNotApplicable),
	})

	if s.TotalRows != 5 {
		t.Errorf("TotalRows = %d; want 5", s.TotalRows)
	}
	if s.PassRows != 2 || s.FailRows != 1 || s.ManualRows != 1 || s.NotApplicableRows != 1 {
		t.Errorf("status counts = %+v", s)
	}
	if s.TotalControls != 4 {
		t.Errorf("TotalControls = %d; want 4", s.TotalControls)
	}
}

func TestSummarize_ComplianceRateOverAutomatedControlsOnly(t *testing.T) {
	// A-1 passes, B-2 fails, C-3 is manual-only: rate is 1/2 automated.
	s := Summarize([]NormalizedRow{
		row("A-1", StatusPass),
		row("B-2", StatusFail),
		row("C-3", StatusManual),
	})

	if s.ComplianceRate != 50.0 {
		t.Errorf("ComplianceRate = %.1f; want 50.0", s.ComplianceRate)
	}
}

func TestSummarize_ControlWithAnyFailCountsAsFailing(t *testing.T) {
	// A-1 has nine passes and one fail: still a failing control.
	rows := make([]NormalizedRow, 0, 10)
	for i := 0; i < 9; i++ {
		rows = append(rows, row("A-1", StatusPass))
	}
	rows = append(rows, row("A-1", StatusFail))

	s := Summarize(rows)
	if s.ComplianceRate != 0 {
		t.Errorf("ComplianceRate = %.1f; want 0 (the only automated control fails)", s.ComplianceRate)
	}
}

func TestSummarize_AllPassing(t *testing.T) {
	s := Summarize([]NormalizedRow{
		row("A-1", StatusPass),
		row("B-2", StatusPass),
	})
	if s.ComplianceRate != 100.0 {
		t.Errorf("ComplianceRate = %.1f; want 100.0", s.ComplianceRate)
	}
}

// ── SeverityRank ──────────────────────────────────────────────────────────────

func TestSeverityRank_Ordering(t *testing.T) {
	ranks := []struct {
		sev  Severity
		want int
	}{
		{SeverityCritical, 4},
		{SeverityHigh, 3},
		{SeverityMedium, 2},
		{SeverityLow, 1},
		{SeverityInfo, 0},
		{Severity("anything-else"), 0},
	}
	for _, tc := range ranks {
		if got := SeverityRank(tc.sev); got != tc.want {
			t.Errorf("SeverityRank(%q) = %d; want %d", tc.sev, got, tc.want)
		}
	}
}

// ── EvidenceSet ───────────────────────────────────────────────────────────────

func TestEvidenceSet_Accessors(t *testing.T) {
	set := &EvidenceSet{Results: []SourceResult{
		{Source: SourceConfig, Records: []EvidenceRecord{{CheckID: "r1"}, {CheckID: "r2"}}},
		{Source: SourceCloudTrail, Err: errSentinel},
		{Source: SourceS3},
	}}

	if got := len(set.RecordsFor(SourceConfig)); got != 2 {
		t.Errorf("RecordsFor(config) = %d records; want 2", got)
	}
	if set.RecordsFor(SourceIAM) != nil {
		t.Error("RecordsFor of unqueried source must be nil")
	}
	if failed := set.FailedSources(); len(failed) != 1 || failed[0] != SourceCloudTrail {
		t.Errorf("FailedSources() = %v; want [cloudtrail]", failed)
	}
	if set.TotalRecords() != 2 {
		t.Errorf("TotalRecords() = %d; want 2", set.TotalRecords())
	}
}

var errSentinel = errFake("unavailable")

type errFake string

func (e errFake) Error() string { return string(e) }
