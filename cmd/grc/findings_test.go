package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"
	"github.com/sirupsen/logrus"

	"github.com/fafo-security/grc-pipeline/internal/models"
	"github.com/fafo-security/grc-pipeline/internal/providers/aws/common"
)

type fakeFindingsImporter struct {
	results []*models.ImportResult
	err     error

	batches [][]shtypes.AwsSecurityFinding
}

func (f *fakeFindingsImporter) Import(ctx context.Context, findings []shtypes.AwsSecurityFinding) (*models.ImportResult, error) {
	f.batches = append(f.batches, findings)
	var result *models.ImportResult
	if len(f.results) > 0 {
		result = f.results[0]
		f.results = f.results[1:]
	} else {
		accepted := make([]string, 0, len(findings))
		for _, finding := range findings {
			accepted = append(accepted, aws.ToString(finding.Id))
		}
		result = &models.ImportResult{Accepted: accepted}
	}
	return result, f.err
}

func testMainLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func importScope() *common.ScopeConfig {
	return &common.ScopeConfig{AccountID: "111122223333", Region: "us-east-1"}
}

const sastReportJSON = `{
  "version": "15.0.0",
  "vulnerabilities": [
    {
      "id": "vuln-1",
      "name": "SQL Injection",
      "description": "User input reaches a SQL query",
      "severity": "Critical",
      "location": {"file": "app/db.py", "start_line": 120}
    },
    {
      "id": "vuln-2",
      "name": "Hardcoded Secret",
      "description": "API key committed to source",
      "severity": "High",
      "location": {"file": "config/settings.py", "start_line": 14}
    }
  ]
}`

func writeScannerReport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}
	return path
}

// ── runFindingsImport ─────────────────────────────────────────────────────────

func TestRunFindingsImport_ConvertsAndImports(t *testing.T) {
	path := writeScannerReport(t, "gl-sast-report.json", sastReportJSON)
	importer := &fakeFindingsImporter{}

	outcomes, err := runFindingsImport(context.Background(), importer, importScope(), testMainLogger(), []scannerReport{
		{Product: "GitLab-SAST", Path: path},
	})
	if err != nil {
		t.Fatalf("runFindingsImport() error: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}

	o := outcomes[0]
	if o.Skipped {
		t.Error("report must not be skipped")
	}
	if o.Findings != 2 || o.Accepted != 2 || len(o.Rejected) != 0 {
		t.Errorf("outcome = %+v", o)
	}
	if len(importer.batches) != 1 || len(importer.batches[0]) != 2 {
		t.Fatalf("importer batches = %v", importer.batches)
	}
	if got := aws.ToString(importer.batches[0][0].Id); got != "GitLab-SAST/vuln-1" {
		t.Errorf("first finding Id = %q", got)
	}
}

func TestRunFindingsImport_MissingReportSkipped(t *testing.T) {
	sast := writeScannerReport(t, "gl-sast-report.json", sastReportJSON)
	importer := &fakeFindingsImporter{}

	outcomes, err := runFindingsImport(context.Background(), importer, importScope(), testMainLogger(), []scannerReport{
		{Product: "GitLab-SAST", Path: sast},
		{Product: "GitLab-DAST", Path: filepath.Join(t.TempDir(), "gl-dast-report.json")},
	})
	if err != nil {
		t.Fatalf("runFindingsImport() error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
	if outcomes[0].Skipped {
		t.Error("SAST report must be imported")
	}
	if !outcomes[1].Skipped {
		t.Error("missing DAST report must be skipped")
	}
	if len(importer.batches) != 1 {
		t.Errorf("importer called %d times", len(importer.batches))
	}
}

func TestRunFindingsImport_MalformedReportAborts(t *testing.T) {
	path := writeScannerReport(t, "gl-sast-report.json", "{not json")

	_, err := runFindingsImport(context.Background(), &fakeFindingsImporter{}, importScope(), testMainLogger(), []scannerReport{
		{Product: "GitLab-SAST", Path: path},
	})
	if err == nil {
		t.Fatal("a malformed report must abort the import")
	}
	if !strings.Contains(err.Error(), "GitLab-SAST") {
		t.Errorf("error missing product name: %v", err)
	}
}

func TestRunFindingsImport_ImportErrorAborts(t *testing.T) {
	path := writeScannerReport(t, "gl-sast-report.json", sastReportJSON)
	importer := &fakeFindingsImporter{
		results: []*models.ImportResult{{
			Rejected: []models.RejectedFinding{
				{ID: "GitLab-SAST/vuln-1", ErrorCode: "BatchImportFailed", ErrorMessage: "throttled"},
			},
		}},
		err: errors.New("throttled"),
	}

	outcomes, err := runFindingsImport(context.Background(), importer, importScope(), testMainLogger(), []scannerReport{
		{Product: "GitLab-SAST", Path: path},
	})
	if err == nil {
		t.Fatal("an import failure must abort the command")
	}
	// The partial outcome is still reported so CI logs show what was attempted.
	if len(outcomes) != 1 || len(outcomes[0].Rejected) != 1 {
		t.Errorf("outcomes = %+v", outcomes)
	}
}

func TestRunFindingsImport_EmptyReportSkipsImportCall(t *testing.T) {
	path := writeScannerReport(t, "gl-sast-report.json", `{"version": "15.0.0", "vulnerabilities": []}`)
	importer := &fakeFindingsImporter{}

	outcomes, err := runFindingsImport(context.Background(), importer, importScope(), testMainLogger(), []scannerReport{
		{Product: "GitLab-SAST", Path: path},
	})
	if err != nil {
		t.Fatalf("runFindingsImport() error: %v", err)
	}
	if outcomes[0].Skipped || outcomes[0].Findings != 0 {
		t.Errorf("outcome = %+v", outcomes[0])
	}
	if len(importer.batches) != 0 {
		t.Error("no findings means no import call")
	}
}

// ── printImportTable ──────────────────────────────────────────────────────────

func TestPrintImportTable(t *testing.T) {
	var buf bytes.Buffer
	printImportTable(&buf, []importOutcome{
		{Product: "GitLab-SAST", Path: "gl-sast-report.json", Findings: 3, Accepted: 2, Rejected: []models.RejectedFinding{
			{ID: "GitLab-SAST/vuln-2", ErrorCode: "InvalidInput", ErrorMessage: "malformed resource"},
		}},
		{Product: "GitLab-DAST", Path: "gl-dast-report.json", Skipped: true},
	})

	out := buf.String()
	for _, want := range []string{
		"PRODUCT",
		"GitLab-SAST",
		"skipped (not found)",
		"Rejected [GitLab-SAST] GitLab-SAST/vuln-2: InvalidInput malformed resource",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
