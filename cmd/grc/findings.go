package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"
	"github.com/sirupsen/logrus"

	"github.com/fafo-security/grc-pipeline/internal/convert"
	"github.com/fafo-security/grc-pipeline/internal/models"
	"github.com/fafo-security/grc-pipeline/internal/providers/aws/common"
)

// scannerReport names one scanner stage and the report file it writes.
type scannerReport struct {
	Product string
	Path    string
}

// importOutcome is the per-report result of grc findings import.
type importOutcome struct {
	Product  string                   `json:"product"`
	Path     string                   `json:"path"`
	Skipped  bool                     `json:"skipped"`
	Findings int                      `json:"findings"`
	Accepted int                      `json:"accepted"`
	Rejected []models.RejectedFinding `json:"rejected,omitempty"`
}

// findingsImporter is the slice of convert.Importer the command needs.
type findingsImporter interface {
	Import(ctx context.Context, findings []shtypes.AwsSecurityFinding) (*models.ImportResult, error)
}

// runFindingsImport converts and imports each scanner report in turn. A
// missing report file is skipped, matching pipelines where only one scan
// stage ran. A conversion or import error aborts the command so CI surfaces
// a failed job rather than a silently partial import.
func runFindingsImport(ctx context.Context, importer findingsImporter, scope *common.ScopeConfig, log *logrus.Logger, reports []scannerReport) ([]importOutcome, error) {
	now := time.Now().UTC()

	outcomes := make([]importOutcome, 0, len(reports))
	for _, report := range reports {
		outcome := importOutcome{Product: report.Product, Path: report.Path}

		vulns, found, err := convert.LoadGitLabReport(report.Path)
		if err != nil {
			return nil, fmt.Errorf("load %s report %q: %w", report.Product, report.Path, err)
		}
		if !found {
			log.WithFields(logrus.Fields{"product": report.Product, "path": report.Path}).
				Info("scanner report not found, skipping")
			outcome.Skipped = true
			outcomes = append(outcomes, outcome)
			continue
		}

		converter := convert.NewConverter(convert.ConverterOptions{
			ProductName: report.Product,
			AccountID:   scope.AccountID,
			Region:      scope.Region,
			Now:         now,
		}, log)
		findings := converter.Convert(vulns)
		outcome.Findings = len(findings)

		if len(findings) > 0 {
			result, err := importer.Import(ctx, findings)
			if result != nil {
				outcome.Accepted = len(result.Accepted)
				outcome.Rejected = result.Rejected
			}
			if err != nil {
				outcomes = append(outcomes, outcome)
				return outcomes, fmt.Errorf("import %s findings: %w", report.Product, err)
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// printImportTable renders one line per scanner report plus rejection detail.
func printImportTable(w io.Writer, outcomes []importOutcome) {
	fmt.Fprintf(w, "%-14s  %-26s  %-8s  %-9s  %s\n", "PRODUCT", "REPORT", "FINDINGS", "ACCEPTED", "REJECTED")
	fmt.Fprintln(w, strings.Repeat("-", 74))
	for _, o := range outcomes {
		if o.Skipped {
			fmt.Fprintf(w, "%-14s  %-26s  %s\n", o.Product, o.Path, "skipped (not found)")
			continue
		}
		fmt.Fprintf(w, "%-14s  %-26s  %-8d  %-9d  %d\n", o.Product, o.Path, o.Findings, o.Accepted, len(o.Rejected))
	}

	for _, o := range outcomes {
		for _, r := range o.Rejected {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "Rejected [%s] %s: %s %s\n", o.Product, r.ID, r.ErrorCode, r.ErrorMessage)
		}
	}
}
