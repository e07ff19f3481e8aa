package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	auditmanagersvc "github.com/aws/aws-sdk-go-v2/service/auditmanager"
	amtypes "github.com/aws/aws-sdk-go-v2/service/auditmanager/types"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// collectAssessmentEvidence walks an Audit Manager assessment: control sets,
// then controls, then evidence folders dated inside the window, then the
// evidence items in each folder. When a control has no folder inside the
// window its most recent folder is used instead, so every control shows its
// latest known evidence.
//
// An empty assessmentID skips the source (no assessment configured).
// A control whose folders or items cannot be fetched yields one UNKNOWN
// record naming the failure, preserving the audit trail instead of silently
// dropping the control.
func collectAssessmentEvidence(ctx context.Context, client auditManagerAPIClient, assessmentID string, windowStart time.Time) ([]models.EvidenceRecord, error) {
	if assessmentID == "" {
		return nil, nil
	}

	out, err := client.GetAssessment(ctx, &auditmanagersvc.GetAssessmentInput{
		AssessmentId: aws.String(assessmentID),
	})
	if err != nil {
		return nil, fmt.Errorf("get assessment %q: %w", assessmentID, err)
	}
	if out.Assessment == nil || out.Assessment.Framework == nil {
		return nil, fmt.Errorf("assessment %q has no framework", assessmentID)
	}

	var records []models.EvidenceRecord
	for _, controlSet := range out.Assessment.Framework.ControlSets {
		for _, control := range controlSet.Controls {
			controlRecords, err := collectControlEvidence(ctx, client, assessmentID, controlSet, control, windowStart)
			if err != nil {
				records = append(records, assessmentPlaceholder(control, err.Error()))
				continue
			}
			records = append(records, controlRecords...)
		}
	}
	return records, nil
}

// collectControlEvidence fetches the evidence items for one assessment
// control, preferring folders dated inside the window and falling back to the
// newest folder when the window is empty.
func collectControlEvidence(
	ctx context.Context,
	client auditManagerAPIClient,
	assessmentID string,
	controlSet amtypes.AssessmentControlSet,
	control amtypes.AssessmentControl,
	windowStart time.Time,
) ([]models.EvidenceRecord, error) {
	folders, err := listEvidenceFolders(ctx, client, assessmentID, controlSet.Id, control.Id)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return []models.EvidenceRecord{assessmentPlaceholder(control, "no evidence folders")}, nil
	}

	selected := foldersInWindow(folders, windowStart)
	if len(selected) == 0 {
		selected = []amtypes.AssessmentEvidenceFolder{latestFolder(folders)}
	}

	var records []models.EvidenceRecord
	for _, folder := range selected {
		items, err := listFolderEvidence(ctx, client, assessmentID, controlSet.Id, folder.Id)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			records = append(records, assessmentRecord(control, folder, item))
		}
	}
	if len(records) == 0 {
		records = append(records, assessmentPlaceholder(control, "evidence folders empty in window"))
	}
	return records, nil
}

func listEvidenceFolders(ctx context.Context, client auditManagerAPIClient, assessmentID string, controlSetID, controlID *string) ([]amtypes.AssessmentEvidenceFolder, error) {
	paginator := auditmanagersvc.NewGetEvidenceFoldersByAssessmentControlPaginator(client, &auditmanagersvc.GetEvidenceFoldersByAssessmentControlInput{
		AssessmentId: aws.String(assessmentID),
		ControlSetId: controlSetID,
		ControlId:    controlID,
	})
	var folders []amtypes.AssessmentEvidenceFolder
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list evidence folders for control %q: %w", aws.ToString(controlID), err)
		}
		folders = append(folders, page.EvidenceFolders...)
	}
	return folders, nil
}

func listFolderEvidence(ctx context.Context, client auditManagerAPIClient, assessmentID string, controlSetID, folderID *string) ([]amtypes.Evidence, error) {
	paginator := auditmanagersvc.NewGetEvidenceByEvidenceFolderPaginator(client, &auditmanagersvc.GetEvidenceByEvidenceFolderInput{
		AssessmentId:     aws.String(assessmentID),
		ControlSetId:     controlSetID,
		EvidenceFolderId: folderID,
	})
	var items []amtypes.Evidence
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list evidence in folder %q: %w", aws.ToString(folderID), err)
		}
		items = append(items, page.Evidence...)
	}
	return items, nil
}

func foldersInWindow(folders []amtypes.AssessmentEvidenceFolder, windowStart time.Time) []amtypes.AssessmentEvidenceFolder {
	var in []amtypes.AssessmentEvidenceFolder
	for _, f := range folders {
		if f.Date != nil && !f.Date.Before(windowStart) {
			in = append(in, f)
		}
	}
	return in
}

func latestFolder(folders []amtypes.AssessmentEvidenceFolder) amtypes.AssessmentEvidenceFolder {
	latest := folders[0]
	for _, f := range folders[1:] {
		if f.Date != nil && (latest.Date == nil || f.Date.After(*latest.Date)) {
			latest = f
		}
	}
	return latest
}

// assessmentRecord flattens one Audit Manager evidence item. CheckID is the
// assessment control ID so the mapping can tie items back to criteria.
func assessmentRecord(control amtypes.AssessmentControl, folder amtypes.AssessmentEvidenceFolder, item amtypes.Evidence) models.EvidenceRecord {
	attrs := map[string]string{
		"control_name": aws.ToString(control.Name),
		"data_source":  aws.ToString(item.DataSource),
	}
	for k, v := range item.Attributes {
		attrs[k] = v
	}

	resourceID := ""
	if len(item.ResourcesIncluded) > 0 {
		resourceID = aws.ToString(item.ResourcesIncluded[0].Arn)
	}

	rec := models.EvidenceRecord{
		Source:     models.SourceAuditManager,
		CheckID:    aws.ToString(control.Id),
		ResourceID: resourceID,
		Status:     evidenceCheckStatus(item),
		Attributes: attrs,
	}
	if item.Time != nil {
		rec.Timestamp = item.Time.UTC()
	} else if folder.Date != nil {
		rec.Timestamp = folder.Date.UTC()
	}

	raw, _ := json.Marshal(item)
	rec.Raw = raw
	return rec
}

// assessmentPlaceholder is emitted when a control produced no usable
// evidence: the reason is preserved so the report shows why the control has
// no automated status rather than omitting it.
func assessmentPlaceholder(control amtypes.AssessmentControl, reason string) models.EvidenceRecord {
	return models.EvidenceRecord{
		Source:     models.SourceAuditManager,
		CheckID:    aws.ToString(control.Id),
		ResourceID: "N/A",
		Status:     models.EvidenceUnknown,
		Attributes: map[string]string{
			"control_name": aws.ToString(control.Name),
			"reason":       reason,
		},
	}
}

// evidenceCheckStatus derives the pass/fail signal from an evidence item.
// Audit Manager reports the compliance check either on the item itself or in
// its attribute map, with service-dependent vocabulary.
func evidenceCheckStatus(item amtypes.Evidence) models.EvidenceStatus {
	status := aws.ToString(item.ComplianceCheck)
	if status == "" {
		status = item.Attributes["findingComplianceStatus"]
	}
	switch strings.ToUpper(status) {
	case "PASSED", "COMPLIANT":
		return models.EvidencePass
	case "FAILED", "NON_COMPLIANT":
		return models.EvidenceFail
	default:
		return models.EvidenceUnknown
	}
}
