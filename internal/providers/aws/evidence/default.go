package evidence

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fafo-security/grc-pipeline/internal/models"
	"github.com/fafo-security/grc-pipeline/internal/providers/aws/common"
)

// DefaultCollector is the production Collector. Sources are fetched
// concurrently, each under its own bounded timeout, so one slow or
// unreachable API cannot stall the run or abort the others.
type DefaultCollector struct {
	factory evidenceClientFactory
	log     *logrus.Logger
}

// NewDefaultCollector returns a DefaultCollector wired to production AWS SDK
// clients.
func NewDefaultCollector(log *logrus.Logger) *DefaultCollector {
	return &DefaultCollector{factory: newDefaultEvidenceClients, log: log}
}

// NewDefaultCollectorWithFactory returns a DefaultCollector that uses f to
// create its clients, allowing tests to inject fakes.
func NewDefaultCollectorWithFactory(f evidenceClientFactory, log *logrus.Logger) *DefaultCollector {
	return &DefaultCollector{factory: f, log: log}
}

// FetchAll collects every source concurrently and returns one SourceResult
// per source in canonical source order, regardless of completion order.
// A failed or timed-out source yields an empty Records slice and a non-nil
// Err; FetchAll itself never fails.
func (c *DefaultCollector) FetchAll(ctx context.Context, scope *common.ScopeConfig, opts FetchOptions) *models.EvidenceSet {
	clients := c.factory(scope.Config)

	type sourceFetch struct {
		source models.EvidenceSource
		fn     func(ctx context.Context) ([]models.EvidenceRecord, error)
	}

	fetches := []sourceFetch{
		{models.SourceSecurityHub, func(ctx context.Context) ([]models.EvidenceRecord, error) {
			return collectSecurityHubFindings(ctx, clients.SecurityHub, opts.SeverityLabels)
		}},
		{models.SourceConfig, func(ctx context.Context) ([]models.EvidenceRecord, error) {
			return collectConfigEvaluations(ctx, clients.Config, opts.ConfigRules)
		}},
		{models.SourceCloudTrail, func(ctx context.Context) ([]models.EvidenceRecord, error) {
			return collectCloudTrailEvents(ctx, clients.CloudTrail, opts.EventNames, opts.WindowStart, opts.WindowEnd)
		}},
		{models.SourceAuditManager, func(ctx context.Context) ([]models.EvidenceRecord, error) {
			return collectAssessmentEvidence(ctx, clients.AuditManager, opts.AssessmentID, opts.WindowStart)
		}},
		{models.SourceS3, func(ctx context.Context) ([]models.EvidenceRecord, error) {
			return collectBucketEncryption(ctx, clients.S3)
		}},
		{models.SourceIAM, func(ctx context.Context) ([]models.EvidenceRecord, error) {
			return collectIAMUserMFA(ctx, clients.IAM)
		}},
	}

	results := make([]models.SourceResult, len(fetches))

	var wg sync.WaitGroup
	for i, f := range fetches {
		wg.Add(1)
		go func(i int, f sourceFetch) {
			defer wg.Done()

			sctx := ctx
			if opts.SourceTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(ctx, opts.SourceTimeout)
				defer cancel()
			}

			records, err := f.fn(sctx)
			if err != nil {
				// Partial availability: record the error, keep the run going.
				c.log.WithFields(logrus.Fields{
					"source": f.source,
					"error":  err,
				}).Warn("evidence source unavailable, continuing without it")
				results[i] = models.SourceResult{Source: f.source, Err: err}
				return
			}

			c.log.WithFields(logrus.Fields{
				"source": f.source,
				"count":  len(records),
			}).Info("evidence source collected")
			results[i] = models.SourceResult{Source: f.source, Records: records}
		}(i, f)
	}
	wg.Wait()

	return &models.EvidenceSet{Results: results}
}
