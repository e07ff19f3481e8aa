// Package export renders Normalized Rows into the run's Report Artifact and
// delivers it: a multi-sheet workbook written to a local path or an S3 key,
// with an optional CSV detail file and a fire-and-forget notification.
package export

import (
	"context"
	"time"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// RunMeta carries the run identity stamped onto the artifact's summary sheet
// and the CSV metadata header.
type RunMeta struct {
	ReportID    string
	GeneratedAt time.Time
	AccountID   string
	Region      string
	WindowDays  int
}

// ArtifactLocation is where the Report Artifact landed. DownloadURL is set
// only for S3 destinations (a presigned GET, valid for seven days).
type ArtifactLocation struct {
	Path        string
	DownloadURL string
}

// Exporter writes exactly one Report Artifact per run. The exporter decides
// only how rows are rendered and where the file goes; it never inspects how
// evidence was collected. A write failure is fatal for the run.
type Exporter interface {
	Export(ctx context.Context, rows []models.NormalizedRow, summary models.ReportSummary, meta RunMeta) (*ArtifactLocation, error)
}
