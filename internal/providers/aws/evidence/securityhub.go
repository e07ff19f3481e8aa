package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	securityhubsvc "github.com/aws/aws-sdk-go-v2/service/securityhub"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// collectSecurityHubFindings returns failed compliance findings from Security
// Hub, filtered to the given severity labels. The GetFindings paginator is
// drained fully so no findings are truncated.
//
// Each finding becomes one EvidenceRecord with Status FAIL (the filter only
// admits failed findings) and the full ASFF document preserved in Raw.
func collectSecurityHubFindings(ctx context.Context, client securityHubAPIClient, severityLabels []string) ([]models.EvidenceRecord, error) {
	filters := &shtypes.AwsSecurityFindingFilters{
		ComplianceStatus: []shtypes.StringFilter{
			{Value: aws.String("FAILED"), Comparison: shtypes.StringFilterComparisonEquals},
		},
		RecordState: []shtypes.StringFilter{
			{Value: aws.String("ACTIVE"), Comparison: shtypes.StringFilterComparisonEquals},
		},
	}
	for _, label := range severityLabels {
		filters.SeverityLabel = append(filters.SeverityLabel, shtypes.StringFilter{
			Value:      aws.String(label),
			Comparison: shtypes.StringFilterComparisonEquals,
		})
	}

	paginator := securityhubsvc.NewGetFindingsPaginator(client, &securityhubsvc.GetFindingsInput{
		Filters:    filters,
		MaxResults: aws.Int32(100),
	})

	var records []models.EvidenceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("get Security Hub findings: %w", err)
		}
		for _, finding := range page.Findings {
			records = append(records, securityHubRecord(finding))
		}
	}
	return records, nil
}

// securityHubRecord flattens one ASFF finding into an EvidenceRecord.
// CheckID is the finding's GeneratorId (the control/rule that produced it);
// the resource is the first resource on the finding.
func securityHubRecord(finding shtypes.AwsSecurityFinding) models.EvidenceRecord {
	attrs := map[string]string{
		"title": aws.ToString(finding.Title),
	}
	if finding.Severity != nil {
		attrs["severity"] = string(finding.Severity.Label)
	}

	resourceID := ""
	if len(finding.Resources) > 0 {
		resourceID = aws.ToString(finding.Resources[0].Id)
		for k, v := range finding.Resources[0].Tags {
			attrs["tag:"+k] = v
		}
	}

	// ASFF timestamps are RFC 3339 strings; fall back to the zero time on
	// malformed input rather than dropping the record.
	ts, _ := time.Parse(time.RFC3339, aws.ToString(finding.UpdatedAt))

	raw, _ := json.Marshal(finding)

	return models.EvidenceRecord{
		Source:     models.SourceSecurityHub,
		CheckID:    aws.ToString(finding.GeneratorId),
		ResourceID: resourceID,
		Status:     models.EvidenceFail,
		Timestamp:  ts.UTC(),
		Attributes: attrs,
		Raw:        raw,
	}
}
