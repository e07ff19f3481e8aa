package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ScopeConfig is a resolved AWS scope: the credentials, account, and region a
// pipeline run collects evidence from. It is the unit passed from the CLI
// into the engine and down to the collectors.
type ScopeConfig struct {
	// ProfileName is the name from ~/.aws/credentials or "default".
	ProfileName string

	// AccountID is the resolved AWS account ID for this scope (via STS).
	AccountID string

	// Region is the region evidence is collected from.
	Region string

	// Config is the fully loaded AWS SDK v2 configuration.
	Config aws.Config
}

// AWSClientProvider loads AWS configurations and validates regions.
// It is the sole entry point for AWS credential management across the
// provider layer.
//
// Implementations must use the AWS SDK v2 only. Never shell out to the aws CLI.
type AWSClientProvider interface {
	// LoadScope returns a ScopeConfig for the named profile and region.
	// Pass an empty profile to use the default credential chain; pass an
	// empty region to use the profile's configured region.
	LoadScope(ctx context.Context, profile, region string) (*ScopeConfig, error)

	// ActiveRegions returns all regions enabled for the account associated
	// with scope. Used by doctor to verify the configured region is live.
	ActiveRegions(ctx context.Context, scope *ScopeConfig) ([]string, error)

	// ConfigForRegion clones scope's config with the target region set.
	ConfigForRegion(scope *ScopeConfig, region string) aws.Config
}
