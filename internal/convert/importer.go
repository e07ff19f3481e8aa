package convert

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	securityhubsvc "github.com/aws/aws-sdk-go-v2/service/securityhub"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"
	"github.com/sirupsen/logrus"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// importBatchSize is Security Hub's BatchImportFindings limit per call.
const importBatchSize = 100

// securityHubImportClient is the narrow Security Hub interface used for
// finding submission, the converter's only write call.
type securityHubImportClient interface {
	BatchImportFindings(ctx context.Context, params *securityhubsvc.BatchImportFindingsInput, optFns ...func(*securityhubsvc.Options)) (*securityhubsvc.BatchImportFindingsOutput, error)
}

// Importer submits converted findings to Security Hub.
type Importer struct {
	client securityHubImportClient
	log    *logrus.Logger
}

// NewImporter returns an Importer backed by the production Security Hub client.
func NewImporter(cfg aws.Config, log *logrus.Logger) *Importer {
	return &Importer{client: securityhubsvc.NewFromConfig(cfg), log: log}
}

// NewImporterWithClient injects a Security Hub client for tests.
func NewImporterWithClient(client securityHubImportClient, log *logrus.Logger) *Importer {
	return &Importer{client: client, log: log}
}

// Import submits findings in batches of at most 100 and accumulates the
// per-item outcome. Partial rejection is reported as exactly that: rejected
// findings carry their API-reported reason, accepted findings are listed by
// Id, and neither set is collapsed into the other.
//
// An error is returned only when a whole batch call fails; in that case the
// findings of that batch (and any batches not yet attempted) are counted as
// rejected with the transport error as the reason.
func (i *Importer) Import(ctx context.Context, findings []shtypes.AwsSecurityFinding) (*models.ImportResult, error) {
	result := &models.ImportResult{}

	for start := 0; start < len(findings); start += importBatchSize {
		end := start + importBatchSize
		if end > len(findings) {
			end = len(findings)
		}
		batch := findings[start:end]

		out, err := i.client.BatchImportFindings(ctx, &securityhubsvc.BatchImportFindingsInput{
			Findings: batch,
		})
		if err != nil {
			// The failed batch and every batch not yet attempted count as
			// rejected, so each submitted finding lands in exactly one set.
			for _, f := range findings[start:] {
				result.Rejected = append(result.Rejected, models.RejectedFinding{
					ID:           aws.ToString(f.Id),
					ErrorCode:    "BatchImportFailed",
					ErrorMessage: err.Error(),
				})
			}
			return result, fmt.Errorf("batch import findings: %w", err)
		}

		failed := make(map[string]bool, len(out.FailedFindings))
		for _, fail := range out.FailedFindings {
			failed[aws.ToString(fail.Id)] = true
			result.Rejected = append(result.Rejected, models.RejectedFinding{
				ID:           aws.ToString(fail.Id),
				ErrorCode:    aws.ToString(fail.ErrorCode),
				ErrorMessage: aws.ToString(fail.ErrorMessage),
			})
		}
		for _, f := range batch {
			if !failed[aws.ToString(f.Id)] {
				result.Accepted = append(result.Accepted, aws.ToString(f.Id))
			}
		}

		i.log.WithFields(logrus.Fields{
			"submitted": len(batch),
			"accepted":  aws.ToInt32(out.SuccessCount),
			"rejected":  aws.ToInt32(out.FailedCount),
		}).Info("findings batch imported")
	}

	return result, nil
}
