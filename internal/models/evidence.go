package models

import (
	"encoding/json"
	"time"
)

// EvidenceSource identifies the AWS API an Evidence Record was collected from.
type EvidenceSource string

const (
	SourceSecurityHub  EvidenceSource = "securityhub"
	SourceConfig       EvidenceSource = "config"
	SourceCloudTrail   EvidenceSource = "cloudtrail"
	SourceAuditManager EvidenceSource = "auditmanager"
	SourceS3           EvidenceSource = "s3"
	SourceIAM          EvidenceSource = "iam"
)

// AllEvidenceSources lists every source the collector knows how to query,
// in the canonical order used for reporting.
var AllEvidenceSources = []EvidenceSource{
	SourceSecurityHub,
	SourceConfig,
	SourceCloudTrail,
	SourceAuditManager,
	SourceS3,
	SourceIAM,
}

// EvidenceStatus is the raw pass/fail signal carried by an Evidence Record.
// It reflects only what the source API reported; mapping evidence onto
// control status is the transformer's job.
type EvidenceStatus string

const (
	EvidencePass    EvidenceStatus = "PASS"
	EvidenceFail    EvidenceStatus = "FAIL"
	EvidenceUnknown EvidenceStatus = "UNKNOWN"
)

// EvidenceRecord is one raw item returned by a compliance API call: one
// Security Hub finding, one Config rule evaluation, one CloudTrail event,
// one Audit Manager evidence item, or one inventory observation.
//
// Records are created by the collector and never mutated afterwards.
// Attributes holds the known, flattened fields the transformer needs; Raw
// preserves the source's native payload for sources whose shape varies so
// nothing is lost between fetch and export.
type EvidenceRecord struct {
	Source     EvidenceSource    `json:"source"`
	CheckID    string            `json:"check_id"`
	ResourceID string            `json:"resource_id"`
	Status     EvidenceStatus    `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Raw        json.RawMessage   `json:"raw,omitempty"`
}

// SourceResult is the outcome of collecting one evidence source.
// A source that failed or timed out has Err set and an empty Records slice;
// the rest of the run proceeds without it.
type SourceResult struct {
	Source  EvidenceSource
	Records []EvidenceRecord
	Err     error
}

// EvidenceSet holds the per-source collections produced by a single fetch.
// Iteration over Results must not assume any particular completion order;
// sources may be collected concurrently.
type EvidenceSet struct {
	Results []SourceResult
}

// RecordsFor returns the records collected from the named source, or nil
// when the source was not queried or returned nothing.
func (s *EvidenceSet) RecordsFor(source EvidenceSource) []EvidenceRecord {
	for _, r := range s.Results {
		if r.Source == source {
			return r.Records
		}
	}
	return nil
}

// FailedSources returns the sources whose collection ended in an error,
// in the order they appear in Results.
func (s *EvidenceSet) FailedSources() []EvidenceSource {
	var failed []EvidenceSource
	for _, r := range s.Results {
		if r.Err != nil {
			failed = append(failed, r.Source)
		}
	}
	return failed
}

// TotalRecords returns the number of Evidence Records across all sources.
func (s *EvidenceSet) TotalRecords() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Records)
	}
	return n
}
