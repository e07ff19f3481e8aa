package evidence

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	auditmanagersvc "github.com/aws/aws-sdk-go-v2/service/auditmanager"
	cloudtrailsvc "github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	configsvc "github.com/aws/aws-sdk-go-v2/service/configservice"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	securityhubsvc "github.com/aws/aws-sdk-go-v2/service/securityhub"
)

// securityHubAPIClient is the narrow Security Hub interface used for finding
// collection. Embedding the SDK's paginator interface lets the collector use
// NewGetFindingsPaginator directly.
type securityHubAPIClient interface {
	securityhubsvc.GetFindingsAPIClient
}

// configAPIClient is the narrow AWS Config interface used for per-rule
// evaluation collection.
type configAPIClient interface {
	configsvc.GetComplianceDetailsByConfigRuleAPIClient
}

// cloudTrailAPIClient is the narrow CloudTrail interface used for event
// lookup over the evidence window.
type cloudTrailAPIClient interface {
	cloudtrailsvc.LookupEventsAPIClient
}

// auditManagerAPIClient covers the Audit Manager operations needed to walk an
// assessment: the assessment itself, then evidence folders per control, then
// the evidence items inside each folder.
type auditManagerAPIClient interface {
	auditmanagersvc.GetEvidenceFoldersByAssessmentControlAPIClient
	auditmanagersvc.GetEvidenceByEvidenceFolderAPIClient
	GetAssessment(ctx context.Context, params *auditmanagersvc.GetAssessmentInput, optFns ...func(*auditmanagersvc.Options)) (*auditmanagersvc.GetAssessmentOutput, error)
}

// s3APIClient is the narrow S3 interface used for the bucket encryption
// inventory source.
type s3APIClient interface {
	ListBuckets(ctx context.Context, params *s3svc.ListBucketsInput, optFns ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3svc.GetBucketEncryptionInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketEncryptionOutput, error)
}

// iamAPIClient is the narrow IAM interface used for the user MFA posture
// source. It embeds ListUsersAPIClient so the SDK paginator works directly.
type iamAPIClient interface {
	iamsvc.ListUsersAPIClient
	ListMFADevices(ctx context.Context, params *iamsvc.ListMFADevicesInput, optFns ...func(*iamsvc.Options)) (*iamsvc.ListMFADevicesOutput, error)
	GetLoginProfile(ctx context.Context, params *iamsvc.GetLoginProfileInput, optFns ...func(*iamsvc.Options)) (*iamsvc.GetLoginProfileOutput, error)
}

// evidenceClients bundles all AWS service clients used by the collector.
type evidenceClients struct {
	SecurityHub  securityHubAPIClient
	Config       configAPIClient
	CloudTrail   cloudTrailAPIClient
	AuditManager auditManagerAPIClient
	S3           s3APIClient
	IAM          iamAPIClient
}

// evidenceClientFactory creates evidenceClients from an AWS config.
// Injection point: tests replace this with a function returning fakes.
type evidenceClientFactory func(cfg aws.Config) *evidenceClients

// newDefaultEvidenceClients creates production AWS SDK clients from cfg.
func newDefaultEvidenceClients(cfg aws.Config) *evidenceClients {
	return &evidenceClients{
		SecurityHub:  securityhubsvc.NewFromConfig(cfg),
		Config:       configsvc.NewFromConfig(cfg),
		CloudTrail:   cloudtrailsvc.NewFromConfig(cfg),
		AuditManager: auditmanagersvc.NewFromConfig(cfg),
		S3:           s3svc.NewFromConfig(cfg),
		IAM:          iamsvc.NewFromConfig(cfg),
	}
}
