package common

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type fakeSTS struct {
	account string
	err     error
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

type fakeEC2 struct {
	regions []string
	err     error
}

func (f *fakeEC2) DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &ec2.DescribeRegionsOutput{}
	for _, r := range f.regions {
		out.Regions = append(out.Regions, ec2types.Region{RegionName: aws.String(r)})
	}
	return out, nil
}

func fakeFactory(stsClient STSClient, ec2Client EC2RegionClient) ClientFactory {
	return func(cfg aws.Config) *ClientSet {
		return &ClientSet{STS: stsClient, EC2: ec2Client}
	}
}

// ── LoadScope ─────────────────────────────────────────────────────────────────

func TestLoadScope_ResolvesAccountAndRegion(t *testing.T) {
	// The shared-config load must not pick up ambient credentials files.
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")
	t.Setenv("AWS_PROFILE", "")

	p := NewDefaultAWSClientProviderWithFactory(fakeFactory(&fakeSTS{account: "111122223333"}, &fakeEC2{}))

	scope, err := p.LoadScope(context.Background(), "", "eu-west-1")
	if err != nil {
		t.Fatalf("LoadScope() error: %v", err)
	}
	if scope.AccountID != "111122223333" {
		t.Errorf("AccountID = %q; want 111122223333", scope.AccountID)
	}
	if scope.Region != "eu-west-1" {
		t.Errorf("Region = %q; want eu-west-1", scope.Region)
	}
	if scope.ProfileName != "default" {
		t.Errorf("ProfileName = %q; want default", scope.ProfileName)
	}
}

func TestLoadScope_RegionFallback(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")

	p := NewDefaultAWSClientProviderWithFactory(fakeFactory(&fakeSTS{account: "111122223333"}, &fakeEC2{}))

	scope, err := p.LoadScope(context.Background(), "", "")
	if err != nil {
		t.Fatalf("LoadScope() error: %v", err)
	}
	if scope.Region != "us-east-1" {
		t.Errorf("Region = %q; want us-east-1 fallback", scope.Region)
	}
}

func TestLoadScope_STSFailure(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")
	t.Setenv("AWS_PROFILE", "")

	p := NewDefaultAWSClientProviderWithFactory(fakeFactory(&fakeSTS{err: fmt.Errorf("no credentials")}, &fakeEC2{}))

	_, err := p.LoadScope(context.Background(), "", "us-east-1")
	if err == nil {
		t.Fatal("LoadScope() must fail when the account ID cannot be resolved")
	}
}

// ── ActiveRegions ─────────────────────────────────────────────────────────────

func TestActiveRegions(t *testing.T) {
	p := NewDefaultAWSClientProviderWithFactory(fakeFactory(
		&fakeSTS{account: "111122223333"},
		&fakeEC2{regions: []string{"us-east-1", "eu-west-1"}},
	))

	regions, err := p.ActiveRegions(context.Background(), &ScopeConfig{ProfileName: "default"})
	if err != nil {
		t.Fatalf("ActiveRegions() error: %v", err)
	}
	if len(regions) != 2 || regions[0] != "us-east-1" || regions[1] != "eu-west-1" {
		t.Errorf("regions = %v", regions)
	}
}

func TestActiveRegions_Error(t *testing.T) {
	p := NewDefaultAWSClientProviderWithFactory(fakeFactory(
		&fakeSTS{account: "111122223333"},
		&fakeEC2{err: fmt.Errorf("access denied")},
	))

	_, err := p.ActiveRegions(context.Background(), &ScopeConfig{ProfileName: "default"})
	if err == nil {
		t.Fatal("ActiveRegions() must propagate the API error")
	}
}

// ── ConfigForRegion ───────────────────────────────────────────────────────────

func TestConfigForRegion_DoesNotMutateScope(t *testing.T) {
	p := NewDefaultAWSClientProvider()
	scope := &ScopeConfig{Region: "us-east-1", Config: aws.Config{Region: "us-east-1"}}

	regional := p.ConfigForRegion(scope, "ap-southeast-2")
	if regional.Region != "ap-southeast-2" {
		t.Errorf("regional.Region = %q", regional.Region)
	}
	if scope.Config.Region != "us-east-1" {
		t.Errorf("scope config mutated: %q", scope.Config.Region)
	}
}
