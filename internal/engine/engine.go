// Package engine orchestrates one pipeline run: fetch evidence, transform it
// into Normalized Rows, export the Report Artifact, notify. The engine is
// trigger-agnostic; the CLI, a cron job, or a queue consumer all call the
// same RunOnce.
package engine

import (
	"context"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// Engine is the pipeline's single entry point. RunOnce performs exactly one
// fetch → transform → export batch and returns its RunResult.
//
// The engine must not call AWS SDK clients directly; it delegates to the
// provider, collector, exporter, and notifier interfaces.
type Engine interface {
	RunOnce(ctx context.Context) (*models.RunResult, error)
}
