package export

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	snssvc "github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// snsPublishClient is the narrow SNS interface used for run notifications.
type snsPublishClient interface {
	Publish(ctx context.Context, params *snssvc.PublishInput, optFns ...func(*snssvc.Options)) (*snssvc.PublishOutput, error)
}

// Notifier announces a finished artifact to the report's recipients.
// Notification is fire-and-forget: its failure never fails the run.
type Notifier interface {
	NotifyArtifact(ctx context.Context, location *ArtifactLocation, summary models.ReportSummary, meta RunMeta) error
}

// SNSNotifier publishes the artifact announcement to a fixed SNS topic,
// whose subscriptions define the recipient list.
type SNSNotifier struct {
	topicARN string
	client   snsPublishClient
}

// NewSNSNotifier returns a notifier backed by the production SNS client.
func NewSNSNotifier(cfg aws.Config, topicARN string) *SNSNotifier {
	return &SNSNotifier{topicARN: topicARN, client: snssvc.NewFromConfig(cfg)}
}

// NewSNSNotifierWithClient injects an SNS client for tests.
func NewSNSNotifierWithClient(topicARN string, client snsPublishClient) *SNSNotifier {
	return &SNSNotifier{topicARN: topicARN, client: client}
}

// NotifyArtifact publishes a plain-text message pointing at the artifact.
// When a presigned download URL exists it is included; otherwise recipients
// get the artifact path.
func (n *SNSNotifier) NotifyArtifact(ctx context.Context, location *ArtifactLocation, summary models.ReportSummary, meta RunMeta) error {
	subject := fmt.Sprintf("Compliance report ready — %s", meta.GeneratedAt.UTC().Format("2006-01-02"))

	link := location.Path
	if location.DownloadURL != "" {
		link = location.DownloadURL + "\n(link expires in 7 days)"
	}
	message := fmt.Sprintf(
		"The compliance evidence report for account %s is ready.\n\n"+
			"Controls: %d  Pass: %d  Fail: %d  Manual: %d  N/A: %d\n"+
			"Compliance rate: %.1f%%\n\nDownload:\n%s\n",
		meta.AccountID,
		summary.TotalControls,
		summary.PassRows,
		summary.FailRows,
		summary.ManualRows,
		summary.NotApplicableRows,
		summary.ComplianceRate,
		link,
	)

	if _, err := n.client.Publish(ctx, &snssvc.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	}); err != nil {
		return fmt.Errorf("publish report notification: %w", err)
	}
	return nil
}
