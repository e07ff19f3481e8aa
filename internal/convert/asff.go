package convert

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	shtypes "github.com/aws/aws-sdk-go-v2/service/securityhub/types"
	"github.com/sirupsen/logrus"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// asffSchemaVersion is the ASFF schema revision these findings declare.
const asffSchemaVersion = "2018-10-08"

// defaultSeverity is the label applied when a scanner reports a severity
// with no defined mapping. Applied, logged, never dropped.
const defaultSeverity = shtypes.SeverityLabelInformational

// severityMap is the total mapping from GitLab severity values to ASFF
// severity labels. Inputs outside this table resolve to defaultSeverity.
var severityMap = map[string]shtypes.SeverityLabel{
	"Critical": shtypes.SeverityLabelCritical,
	"High":     shtypes.SeverityLabelHigh,
	"Medium":   shtypes.SeverityLabelMedium,
	"Low":      shtypes.SeverityLabelLow,
	"Info":     shtypes.SeverityLabelInformational,
	"Unknown":  shtypes.SeverityLabelInformational,
}

// ConverterOptions scopes a conversion batch: the product label prepended to
// finding IDs and the account/region the findings are imported into.
type ConverterOptions struct {
	// ProductName labels the scanner stage, e.g. "GitLab-SAST".
	ProductName string

	// AccountID and Region identify the Security Hub destination and form
	// part of the product ARN.
	AccountID string
	Region    string

	// Now anchors CreatedAt/UpdatedAt. The caller passes one timestamp per
	// batch so re-converting a batch differs only in timestamps, never IDs.
	Now time.Time
}

// Converter turns scanner findings into ASFF documents.
type Converter struct {
	opts ConverterOptions
	log  *logrus.Logger
}

// NewConverter returns a Converter for one scan batch.
func NewConverter(opts ConverterOptions, log *logrus.Logger) *Converter {
	return &Converter{opts: opts, log: log}
}

// Convert maps each scanner finding to exactly one ASFF finding, in input
// order. The derivation is deterministic: converting the same finding twice
// yields the same ASFF Id, which is what makes re-import safe (Security Hub
// updates rather than duplicates on matching Id).
func (c *Converter) Convert(vulns []models.GitLabVulnerability) []shtypes.AwsSecurityFinding {
	findings := make([]shtypes.AwsSecurityFinding, 0, len(vulns))
	for _, v := range vulns {
		findings = append(findings, c.convertOne(v))
	}
	return findings
}

func (c *Converter) convertOne(v models.GitLabVulnerability) shtypes.AwsSecurityFinding {
	now := c.opts.Now.UTC().Format(time.RFC3339)

	title := v.Name
	if title == "" {
		title = c.opts.ProductName + " security finding"
	}
	description := v.Description
	if description == "" {
		description = "Security vulnerability detected"
	}
	remediation := v.Solution
	if remediation == "" {
		remediation = "Review the scanner report for remediation guidance"
	}

	return shtypes.AwsSecurityFinding{
		SchemaVersion: aws.String(asffSchemaVersion),
		Id:            aws.String(c.findingID(v)),
		ProductArn: aws.String(fmt.Sprintf(
			"arn:aws:securityhub:%s:%s:product/%s/default",
			c.opts.Region, c.opts.AccountID, c.opts.AccountID,
		)),
		GeneratorId:  aws.String(c.opts.ProductName + "-Scanner"),
		AwsAccountId: aws.String(c.opts.AccountID),
		Types:        []string{"Software and Configuration Checks/Vulnerabilities"},
		CreatedAt:    aws.String(now),
		UpdatedAt:    aws.String(now),
		Severity:     &shtypes.Severity{Label: c.severityLabel(v.Severity)},
		Title:        aws.String(title),
		Description:  aws.String(description),
		Resources: []shtypes.Resource{{
			Type: aws.String("Other"),
			Id:   aws.String(findingLocation(v)),
		}},
		Remediation: &shtypes.Remediation{
			Recommendation: &shtypes.Recommendation{Text: aws.String(remediation)},
		},
		RecordState:   shtypes.RecordStateActive,
		WorkflowState: shtypes.WorkflowStateNew,
	}
}

// findingID derives the stable ASFF Id for a scanner finding. Scanners that
// assign their own IDs keep them; otherwise the Id is a SHA-1 over the
// fields that identify the finding, so the same input always derives the
// same Id.
func (c *Converter) findingID(v models.GitLabVulnerability) string {
	if v.ID != "" {
		return c.opts.ProductName + "/" + v.ID
	}
	sum := sha1.Sum([]byte(v.Name + "|" + v.Location.File + "|" + fmt.Sprint(v.Location.StartLine)))
	return c.opts.ProductName + "/" + hex.EncodeToString(sum[:])
}

// severityLabel applies the total severity mapping. Unlisted values get the
// default and a warn log so the gap is visible without aborting the batch.
func (c *Converter) severityLabel(severity string) shtypes.SeverityLabel {
	if label, ok := severityMap[severity]; ok {
		return label
	}
	c.log.WithField("severity", severity).Warn("unmapped scanner severity, using default")
	return defaultSeverity
}

// findingLocation picks the most specific location the scanner reported:
// file for SAST, host+path for DAST, a placeholder otherwise.
func findingLocation(v models.GitLabVulnerability) string {
	if v.Location.File != "" {
		return v.Location.File
	}
	if v.Location.Hostname != "" {
		return v.Location.Hostname + v.Location.Path
	}
	return "unknown location"
}
