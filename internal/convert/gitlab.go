// Package convert maps GitLab security-scan findings into the AWS Security
// Finding Format (ASFF) and submits them to Security Hub, reporting accepted
// and rejected findings separately.
package convert

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// LoadGitLabReport parses a GitLab scan artifact (gl-sast-report.json /
// gl-dast-report.json) and returns its vulnerabilities. A missing file is
// not an error: the pipeline stage that would have produced it may simply
// not have run, so (nil, false, nil) is returned and the caller logs a skip.
func LoadGitLabReport(path string) ([]models.GitLabVulnerability, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read scan report %s: %w", path, err)
	}

	var report models.GitLabReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, false, fmt.Errorf("parse scan report %s: %w", path, err)
	}
	return report.Vulnerabilities, true, nil
}
