package evidence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// CheckIAMUserMFA is the check identifier the IAM posture source emits.
// Control mappings reference it as {source: iam, id: <this>}.
const CheckIAMUserMFA = "iam-user-mfa"

// collectIAMUserMFA emits one EvidenceRecord per console-capable IAM user:
// PASS when the user has at least one MFA device, FAIL otherwise. API-only
// users (no login profile) pass by definition; they cannot sign in to the
// console, so console MFA does not apply to them.
func collectIAMUserMFA(ctx context.Context, client iamAPIClient) ([]models.EvidenceRecord, error) {
	paginator := iamsvc.NewListUsersPaginator(client, &iamsvc.ListUsersInput{})

	now := time.Now().UTC()
	var records []models.EvidenceRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list IAM users: %w", err)
		}
		for _, u := range page.Users {
			userName := aws.ToString(u.UserName)

			hasProfile, err := userHasLoginProfile(ctx, client, userName)
			if err != nil {
				return nil, err
			}

			status := models.EvidencePass
			detail := "MFA enabled"
			switch {
			case !hasProfile:
				detail = "API-only user, console MFA not applicable"
			case !userHasMFA(ctx, client, userName):
				status = models.EvidenceFail
				detail = "console user without MFA device"
			}

			records = append(records, models.EvidenceRecord{
				Source:     models.SourceIAM,
				CheckID:    CheckIAMUserMFA,
				ResourceID: userName,
				Status:     status,
				Timestamp:  now,
				Attributes: map[string]string{"detail": detail},
			})
		}
	}
	return records, nil
}

// userHasMFA returns true when the user has at least one MFA device
// registered. Errors are treated as "no MFA" (conservative).
func userHasMFA(ctx context.Context, client iamAPIClient, userName string) bool {
	out, err := client.ListMFADevices(ctx, &iamsvc.ListMFADevicesInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		return false
	}
	return len(out.MFADevices) > 0
}

// userHasLoginProfile returns true when the user has a console password.
// GetLoginProfile returns NoSuchEntityException when no profile exists, which
// is the definite "API-only user" answer; any other error aborts the source
// rather than silently classifying a console user as API-only.
func userHasLoginProfile(ctx context.Context, client iamAPIClient, userName string) (bool, error) {
	_, err := client.GetLoginProfile(ctx, &iamsvc.GetLoginProfileInput{
		UserName: aws.String(userName),
	})
	if err != nil {
		var notFound *iamtypes.NoSuchEntityException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("get login profile for %q: %w", userName, err)
	}
	return true, nil
}
