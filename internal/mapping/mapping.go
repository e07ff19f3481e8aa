// Package mapping holds the static table that links internal compliance
// criteria to the cloud-native checks that produce automated evidence for
// them. The table is loaded once per run from a YAML file and passed
// explicitly into the transformer; there is no ambient mapping state.
package mapping

import (
	"fmt"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// CheckRef names one automated check inside an evidence source.
// For Config the ID is the Config rule name; for CloudTrail it is the event
// name to look up; for inventory sources it is the fixed check identifier the
// collector emits (e.g. "s3-default-encryption").
type CheckRef struct {
	Source models.EvidenceSource `yaml:"source" json:"source"`
	ID     string                `yaml:"id" json:"id"`
}

// Control is one compliance criterion and the checks mapped to it.
// A control with no checks is a manual criterion: it has no automated
// evidence and is surfaced as a "manual" row, never dropped.
type Control struct {
	ID       string          `yaml:"id" json:"id"`
	Name     string          `yaml:"name" json:"name"`
	Severity models.Severity `yaml:"severity" json:"severity"`
	Checks   []CheckRef      `yaml:"checks,omitempty" json:"checks,omitempty"`

	// Disabled marks the control's checks as deliberately out of automated
	// scope. Evidence for a disabled control is tagged not-applicable with
	// Reason, preserving the audit trail of why no automated status exists.
	Disabled bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Reason   string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// ControlMapping is the full criterion-to-check table for a run.
// One criterion may map to many checks and one check may serve many
// criteria; Resolve returns every control a check belongs to.
type ControlMapping struct {
	Version  int       `yaml:"version" json:"version"`
	Controls []Control `yaml:"controls" json:"controls"`

	index map[CheckRef][]*Control
}

// buildIndex populates the check -> controls lookup. Called by the loader;
// tests constructing a ControlMapping by hand must call Init.
func (m *ControlMapping) buildIndex() {
	m.index = make(map[CheckRef][]*Control)
	for i := range m.Controls {
		c := &m.Controls[i]
		for _, ref := range c.Checks {
			m.index[ref] = append(m.index[ref], c)
		}
	}
}

// Init prepares the mapping for lookups and validates basic shape.
func (m *ControlMapping) Init() error {
	seen := make(map[string]bool)
	for _, c := range m.Controls {
		if c.ID == "" {
			return fmt.Errorf("control with empty id")
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate control id %q", c.ID)
		}
		seen[c.ID] = true
	}
	m.buildIndex()
	return nil
}

// Resolve returns the controls mapped to the given check, in declaration
// order. ok is false when no control claims the check.
func (m *ControlMapping) Resolve(source models.EvidenceSource, checkID string) ([]*Control, bool) {
	controls, ok := m.index[CheckRef{Source: source, ID: checkID}]
	return controls, ok
}

// ChecksFor returns the check IDs declared for the given source across all
// enabled controls. The fetcher uses this to decide which Config rules to
// query and which CloudTrail event names to look up.
func (m *ControlMapping) ChecksFor(source models.EvidenceSource) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, c := range m.Controls {
		if c.Disabled {
			continue
		}
		for _, ref := range c.Checks {
			if ref.Source == source && !seen[ref.ID] {
				seen[ref.ID] = true
				ids = append(ids, ref.ID)
			}
		}
	}
	return ids
}

// ManualControls returns the controls that have no automated checks and are
// not disabled. Each of these yields one manual placeholder row per run.
func (m *ControlMapping) ManualControls() []Control {
	var manual []Control
	for _, c := range m.Controls {
		if !c.Disabled && len(c.Checks) == 0 {
			manual = append(manual, c)
		}
	}
	return manual
}
