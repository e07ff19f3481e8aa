package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// presignExpiry is how long the artifact's download link stays valid.
const presignExpiry = 7 * 24 * time.Hour

// s3UploadClient is the narrow S3 interface used for artifact upload.
type s3UploadClient interface {
	PutObject(ctx context.Context, params *s3svc.PutObjectInput, optFns ...func(*s3svc.Options)) (*s3svc.PutObjectOutput, error)
}

// s3PresignClient is the narrow presigner interface used to mint the
// download URL included in the notification.
type s3PresignClient interface {
	PresignGetObject(ctx context.Context, params *s3svc.GetObjectInput, optFns ...func(*s3svc.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// DefaultExporter is the production Exporter. The destination string decides
// the delivery path: "s3://bucket/prefix" uploads the workbook and returns a
// presigned download URL; anything else is treated as a local path.
type DefaultExporter struct {
	destination string
	csvDetail   bool
	s3          s3UploadClient
	presign     s3PresignClient
	log         *logrus.Logger
}

// NewDefaultExporter returns an exporter wired to production S3 clients.
// cfg is only used when destination is an S3 key.
func NewDefaultExporter(cfg aws.Config, destination string, csvDetail bool, log *logrus.Logger) *DefaultExporter {
	client := s3svc.NewFromConfig(cfg)
	return &DefaultExporter{
		destination: destination,
		csvDetail:   csvDetail,
		s3:          client,
		presign:     s3svc.NewPresignClient(client),
		log:         log,
	}
}

// NewDefaultExporterWithClients injects S3 clients for tests.
func NewDefaultExporterWithClients(destination string, csvDetail bool, upload s3UploadClient, presign s3PresignClient, log *logrus.Logger) *DefaultExporter {
	return &DefaultExporter{
		destination: destination,
		csvDetail:   csvDetail,
		s3:          upload,
		presign:     presign,
		log:         log,
	}
}

// Export builds the workbook and writes it to the configured destination.
// Any failure here is returned to the caller and fails the run: an artifact
// that was not durably written must not be reported as success.
func (e *DefaultExporter) Export(ctx context.Context, rows []models.NormalizedRow, summary models.ReportSummary, meta RunMeta) (*ArtifactLocation, error) {
	workbook, err := BuildWorkbook(rows, summary, meta)
	if err != nil {
		return nil, fmt.Errorf("build workbook: %w", err)
	}

	if bucket, prefix, ok := parseS3Destination(e.destination); ok {
		return e.exportToS3(ctx, workbook, bucket, prefix, meta)
	}
	return e.exportToFile(workbook, rows, meta)
}

func (e *DefaultExporter) exportToS3(ctx context.Context, workbook *excelize.File, bucket, prefix string, meta RunMeta) (*ArtifactLocation, error) {
	var buf bytes.Buffer
	if _, err := workbook.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialise workbook: %w", err)
	}

	key := artifactKey(prefix, meta.GeneratedAt)
	if _, err := e.s3.PutObject(ctx, &s3svc.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(xlsxContentType),
	}); err != nil {
		return nil, fmt.Errorf("upload artifact to s3://%s/%s: %w", bucket, key, err)
	}

	location := &ArtifactLocation{Path: fmt.Sprintf("s3://%s/%s", bucket, key)}

	// The presigned URL is a convenience for the notification; the upload
	// already succeeded, so a presign failure downgrades to a log line.
	req, err := e.presign.PresignGetObject(ctx, &s3svc.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *s3svc.PresignOptions) { o.Expires = presignExpiry })
	if err != nil {
		e.log.WithError(err).Warn("presign artifact download URL failed")
	} else {
		location.DownloadURL = req.URL
	}

	e.log.WithField("artifact", location.Path).Info("report artifact uploaded")
	return location, nil
}

func (e *DefaultExporter) exportToFile(workbook *excelize.File, rows []models.NormalizedRow, meta RunMeta) (*ArtifactLocation, error) {
	path := localArtifactPath(e.destination, meta.GeneratedAt)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create artifact %s: %w", path, err)
	}
	defer f.Close()

	if _, err := workbook.WriteTo(f); err != nil {
		return nil, fmt.Errorf("write artifact %s: %w", path, err)
	}

	if e.csvDetail {
		csvPath := strings.TrimSuffix(path, ".xlsx") + ".csv"
		cf, err := os.Create(csvPath)
		if err != nil {
			return nil, fmt.Errorf("create CSV detail %s: %w", csvPath, err)
		}
		defer cf.Close()
		if err := WriteCSVDetail(cf, rows, meta); err != nil {
			return nil, err
		}
	}

	e.log.WithField("artifact", path).Info("report artifact written")
	return &ArtifactLocation{Path: path}, nil
}

// parseS3Destination splits "s3://bucket/prefix" into its parts.
// ok is false for anything that is not an s3 URL.
func parseS3Destination(dest string) (bucket, prefix string, ok bool) {
	if !strings.HasPrefix(dest, "s3://") {
		return "", "", false
	}
	rest := strings.TrimPrefix(dest, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = strings.Trim(parts[1], "/")
	}
	return bucket, prefix, bucket != ""
}

// artifactKey builds a date-partitioned object key so successive runs never
// overwrite each other: <prefix>/2026/08/27/compliance-report-20260827-0710.xlsx
func artifactKey(prefix string, t time.Time) string {
	name := fmt.Sprintf("%s/compliance-report-%s.xlsx",
		t.UTC().Format("2006/01/02"), t.UTC().Format("20060102-1504"))
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// localArtifactPath resolves the local file path for the workbook. A
// destination ending in .xlsx is used verbatim; anything else is treated as
// a directory receiving a timestamped file.
func localArtifactPath(dest string, t time.Time) string {
	if strings.HasSuffix(dest, ".xlsx") {
		return dest
	}
	return filepath.Join(dest, fmt.Sprintf("compliance-report-%s.xlsx", t.UTC().Format("20060102-1504")))
}
