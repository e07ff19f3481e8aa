package evidence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// CheckS3DefaultEncryption is the check identifier the S3 inventory source
// emits. Control mappings reference it as {source: s3, id: <this>}.
const CheckS3DefaultEncryption = "s3-default-encryption"

// collectBucketEncryption lists every bucket in the account and emits one
// point-in-time EvidenceRecord per bucket: PASS when a default server-side
// encryption configuration exists, FAIL when none is configured.
func collectBucketEncryption(ctx context.Context, client s3APIClient) ([]models.EvidenceRecord, error) {
	out, err := client.ListBuckets(ctx, &s3svc.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list S3 buckets: %w", err)
	}

	now := time.Now().UTC()
	records := make([]models.EvidenceRecord, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		status, detail, err := bucketEncryptionStatus(ctx, client, name)
		if err != nil {
			return nil, err
		}
		records = append(records, models.EvidenceRecord{
			Source:     models.SourceS3,
			CheckID:    CheckS3DefaultEncryption,
			ResourceID: name,
			Status:     status,
			Timestamp:  now,
			Attributes: map[string]string{"detail": detail},
		})
	}
	return records, nil
}

// bucketEncryptionStatus distinguishes "no encryption configured" (a definite
// FAIL, signalled by ServerSideEncryptionConfigurationNotFoundError) from a
// transport or authorisation failure, which aborts the source rather than
// being silently recorded as a result.
func bucketEncryptionStatus(ctx context.Context, client s3APIClient, name string) (models.EvidenceStatus, string, error) {
	out, err := client.GetBucketEncryption(ctx, &s3svc.GetBucketEncryptionInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ServerSideEncryptionConfigurationNotFoundError" {
			return models.EvidenceFail, "no default encryption configuration", nil
		}
		return models.EvidenceUnknown, "", fmt.Errorf("get bucket encryption for %q: %w", name, err)
	}

	algorithm := ""
	if out.ServerSideEncryptionConfiguration != nil && len(out.ServerSideEncryptionConfiguration.Rules) > 0 {
		rule := out.ServerSideEncryptionConfiguration.Rules[0]
		if rule.ApplyServerSideEncryptionByDefault != nil {
			algorithm = string(rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm)
		}
	}
	return models.EvidencePass, "default encryption: " + algorithm, nil
}
