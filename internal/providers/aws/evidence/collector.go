// Package evidence implements the read-only evidence fetcher. Each evidence
// source lives in its own file and produces plain EvidenceRecords; no
// business logic (status resolution, mapping) happens here.
package evidence

import (
	"context"
	"time"

	"github.com/fafo-security/grc-pipeline/internal/models"
	"github.com/fafo-security/grc-pipeline/internal/providers/aws/common"
)

// FetchOptions scopes one evidence collection: the time window, the Security
// Hub severity filter, the Audit Manager assessment, and the per-source check
// lists derived from the control mapping.
type FetchOptions struct {
	// WindowStart and WindowEnd bound the evidence window. Sources that
	// support time filtering (CloudTrail, Audit Manager folders) apply it;
	// point-in-time sources (S3, IAM) ignore it.
	WindowStart time.Time
	WindowEnd   time.Time

	// SeverityLabels filters Security Hub findings (e.g. HIGH, CRITICAL).
	SeverityLabels []string

	// AssessmentID selects the Audit Manager assessment to walk.
	// Empty skips the source and reports an empty collection.
	AssessmentID string

	// ConfigRules lists the Config rule names to query, taken from the
	// control mapping's config-source checks.
	ConfigRules []string

	// EventNames lists the CloudTrail event names to look up, taken from
	// the control mapping's cloudtrail-source checks.
	EventNames []string

	// SourceTimeout bounds each source's collection, including SDK retries.
	// Zero means no per-source bound beyond the parent context.
	SourceTimeout time.Duration
}

// Collector fetches Evidence Records from every configured source.
//
// Implementations must perform only non-mutating calls, drain pagination
// fully, and tolerate partial availability: a source that fails or times out
// contributes an empty collection with its error recorded in the
// SourceResult, and the remaining sources still complete.
type Collector interface {
	FetchAll(ctx context.Context, scope *common.ScopeConfig, opts FetchOptions) *models.EvidenceSet
}
