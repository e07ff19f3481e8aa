package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cloudtrailsvc "github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// collectCloudTrailEvents looks up the mapped event names over the evidence
// window and returns one EvidenceRecord per event. CloudTrail events carry no
// pass/fail semantics on their own, so records are emitted with Status
// UNKNOWN; the transformer surfaces them as manual-review evidence.
func collectCloudTrailEvents(ctx context.Context, client cloudTrailAPIClient, eventNames []string, start, end time.Time) ([]models.EvidenceRecord, error) {
	var records []models.EvidenceRecord
	for _, name := range eventNames {
		paginator := cloudtrailsvc.NewLookupEventsPaginator(client, &cloudtrailsvc.LookupEventsInput{
			LookupAttributes: []cttypes.LookupAttribute{
				{
					AttributeKey:   cttypes.LookupAttributeKeyEventName,
					AttributeValue: aws.String(name),
				},
			},
			StartTime: aws.Time(start),
			EndTime:   aws.Time(end),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("lookup CloudTrail events %q: %w", name, err)
			}
			for _, event := range page.Events {
				records = append(records, cloudTrailRecord(name, event))
			}
		}
	}
	return records, nil
}

// cloudTrailRecord flattens one CloudTrail event. The event's own JSON
// payload is preserved verbatim in Raw.
func cloudTrailRecord(eventName string, event cttypes.Event) models.EvidenceRecord {
	resourceID := aws.ToString(event.Username)
	if resourceID == "" && len(event.Resources) > 0 {
		resourceID = aws.ToString(event.Resources[0].ResourceName)
	}

	rec := models.EvidenceRecord{
		Source:     models.SourceCloudTrail,
		CheckID:    eventName,
		ResourceID: resourceID,
		Status:     models.EvidenceUnknown,
		Attributes: map[string]string{
			"event_id": aws.ToString(event.EventId),
		},
		Raw: []byte(aws.ToString(event.CloudTrailEvent)),
	}
	if event.EventTime != nil {
		rec.Timestamp = event.EventTime.UTC()
	}
	return rec
}
