package evidence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	configsvc "github.com/aws/aws-sdk-go-v2/service/configservice"
	configtypes "github.com/aws/aws-sdk-go-v2/service/configservice/types"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// collectConfigEvaluations queries GetComplianceDetailsByConfigRule for every
// mapped Config rule and returns one EvidenceRecord per evaluation result.
// Both compliant and non-compliant evaluations are collected so the report
// can show passing evidence, not just failures.
//
// A rule that cannot be queried fails the whole source; rules are the unit
// the mapping declared, and dropping one silently would hide a mapping error.
func collectConfigEvaluations(ctx context.Context, client configAPIClient, ruleNames []string) ([]models.EvidenceRecord, error) {
	var records []models.EvidenceRecord
	for _, rule := range ruleNames {
		paginator := configsvc.NewGetComplianceDetailsByConfigRulePaginator(client, &configsvc.GetComplianceDetailsByConfigRuleInput{
			ConfigRuleName: aws.String(rule),
			ComplianceTypes: []configtypes.ComplianceType{
				configtypes.ComplianceTypeCompliant,
				configtypes.ComplianceTypeNonCompliant,
			},
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("get compliance details for Config rule %q: %w", rule, err)
			}
			for _, result := range page.EvaluationResults {
				records = append(records, configRecord(rule, result))
			}
		}
	}
	return records, nil
}

// configRecord flattens one Config evaluation result. CheckID is the Config
// rule name; the evaluated resource ID comes from the result qualifier.
func configRecord(rule string, result configtypes.EvaluationResult) models.EvidenceRecord {
	status := models.EvidenceUnknown
	switch result.ComplianceType {
	case configtypes.ComplianceTypeCompliant:
		status = models.EvidencePass
	case configtypes.ComplianceTypeNonCompliant:
		status = models.EvidenceFail
	}

	rec := models.EvidenceRecord{
		Source:  models.SourceConfig,
		CheckID: rule,
		Status:  status,
		Attributes: map[string]string{
			"compliance_type": string(result.ComplianceType),
		},
	}
	if result.Annotation != nil {
		rec.Attributes["annotation"] = aws.ToString(result.Annotation)
	}
	if result.ResultRecordedTime != nil {
		rec.Timestamp = result.ResultRecordedTime.UTC()
	}
	if result.EvaluationResultIdentifier != nil && result.EvaluationResultIdentifier.EvaluationResultQualifier != nil {
		qualifier := result.EvaluationResultIdentifier.EvaluationResultQualifier
		rec.ResourceID = aws.ToString(qualifier.ResourceId)
		rec.Attributes["resource_type"] = aws.ToString(qualifier.ResourceType)
	}

	raw, _ := json.Marshal(result)
	rec.Raw = raw
	return rec
}
