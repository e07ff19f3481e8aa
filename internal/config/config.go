// Package config defines the explicit run configuration passed into the
// fetcher, transformer, exporter, and converter at construction. Components
// never read ambient state; everything they need to know about scope, window,
// and destinations lives here.
package config

import (
	"errors"
	"time"
)

// RunConfig configures one pipeline run. It is the sole input to
// engine.RunOnce besides the context.
type RunConfig struct {
	// Profile is the named AWS profile to use. Empty means the default
	// credential chain.
	Profile string `mapstructure:"profile"`

	// Region is the AWS region evidence is collected from. Defaults to
	// us-east-1 when neither the flag nor the profile provides one.
	Region string `mapstructure:"region"`

	// AssessmentID is the Audit Manager assessment to walk. When empty the
	// Audit Manager source is skipped (reported as an empty collection).
	AssessmentID string `mapstructure:"assessment_id"`

	// WindowDays is the evidence lookback window. Defaults to 7.
	WindowDays int `mapstructure:"window_days"`

	// FetchTimeoutSeconds bounds each evidence source's collection,
	// including SDK-level retries. Defaults to 60.
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`

	// SeverityLabels filters Security Hub findings. Empty means HIGH and
	// CRITICAL, matching the weekly report's triage focus.
	SeverityLabels []string `mapstructure:"severity_labels"`

	// MappingPath is the control mapping YAML file.
	MappingPath string `mapstructure:"mapping_path"`

	// Destination is where the Report Artifact is written: a local file
	// path or an s3://bucket/prefix key.
	Destination string `mapstructure:"destination"`

	// SNSTopicARN, when set, receives a fire-and-forget notification with
	// the artifact location after a successful export.
	SNSTopicARN string `mapstructure:"sns_topic_arn"`

	// CSVDetail additionally writes the detail view as a CSV file next to
	// the workbook (local destinations only).
	CSVDetail bool `mapstructure:"csv_detail"`

	// LogLevel sets the logrus level: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// FetchTimeout returns the per-source timeout as a duration.
func (c *RunConfig) FetchTimeout() time.Duration {
	secs := c.FetchTimeoutSeconds
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// Window returns the evidence lookback window as a duration.
func (c *RunConfig) Window() time.Duration {
	days := c.WindowDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// Validate checks the fields a run cannot proceed without.
func (c *RunConfig) Validate() error {
	if c.MappingPath == "" {
		return errors.New("mapping_path is required")
	}
	if c.Destination == "" {
		return errors.New("destination is required")
	}
	return nil
}
