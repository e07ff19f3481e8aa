package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"

	"github.com/fafo-security/grc-pipeline/internal/config"
	"github.com/fafo-security/grc-pipeline/internal/export"
	"github.com/fafo-security/grc-pipeline/internal/mapping"
	"github.com/fafo-security/grc-pipeline/internal/models"
	"github.com/fafo-security/grc-pipeline/internal/providers/aws/common"
	"github.com/fafo-security/grc-pipeline/internal/providers/aws/evidence"
	"github.com/fafo-security/grc-pipeline/internal/transform"
)

// ReportEngine is the production Engine. The exporter and notifier are
// created per run through factories because they need the resolved AWS
// config; tests swap the factories for fakes.
type ReportEngine struct {
	cfg     *config.RunConfig
	mapping *mapping.ControlMapping

	provider  common.AWSClientProvider
	collector evidence.Collector

	newExporter func(cfg aws.Config) export.Exporter
	newNotifier func(cfg aws.Config) export.Notifier

	log *logrus.Logger
	now func() time.Time
}

// NewReportEngine wires a ReportEngine to production components.
func NewReportEngine(runCfg *config.RunConfig, m *mapping.ControlMapping, log *logrus.Logger) *ReportEngine {
	e := &ReportEngine{
		cfg:       runCfg,
		mapping:   m,
		provider:  common.NewDefaultAWSClientProvider(),
		collector: evidence.NewDefaultCollector(log),
		log:       log,
		now:       time.Now,
	}
	e.newExporter = func(awsCfg aws.Config) export.Exporter {
		return export.NewDefaultExporter(awsCfg, runCfg.Destination, runCfg.CSVDetail, log)
	}
	e.newNotifier = func(awsCfg aws.Config) export.Notifier {
		if runCfg.SNSTopicARN == "" {
			return nil
		}
		return export.NewSNSNotifier(awsCfg, runCfg.SNSTopicARN)
	}
	return e
}

// NewReportEngineWithComponents wires every dependency explicitly.
// Used by tests; nothing here touches the AWS SDK.
func NewReportEngineWithComponents(
	runCfg *config.RunConfig,
	m *mapping.ControlMapping,
	provider common.AWSClientProvider,
	collector evidence.Collector,
	newExporter func(cfg aws.Config) export.Exporter,
	newNotifier func(cfg aws.Config) export.Notifier,
	log *logrus.Logger,
	now func() time.Time,
) *ReportEngine {
	return &ReportEngine{
		cfg:         runCfg,
		mapping:     m,
		provider:    provider,
		collector:   collector,
		newExporter: newExporter,
		newNotifier: newNotifier,
		log:         log,
		now:         now,
	}
}

// RunOnce executes one sequential fetch → transform → export batch.
//
// Per-source fetch failures are recorded in the RunResult and never abort
// the run. An export failure does abort it: with no artifact there is
// nothing to notify about, and the invoker must see a failed invocation so
// the next schedule tick can retry.
func (e *ReportEngine) RunOnce(ctx context.Context) (*models.RunResult, error) {
	now := e.now().UTC()
	reportID := "grc-" + now.Format("20060102-150405")

	scope, err := e.provider.LoadScope(ctx, e.cfg.Profile, e.cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("resolve AWS scope: %w", err)
	}
	e.log.WithFields(logrus.Fields{
		"report":  reportID,
		"account": scope.AccountID,
		"region":  scope.Region,
	}).Info("starting pipeline run")

	set := e.collector.FetchAll(ctx, scope, evidence.FetchOptions{
		WindowStart:    now.Add(-e.cfg.Window()),
		WindowEnd:      now,
		SeverityLabels: e.cfg.SeverityLabels,
		AssessmentID:   e.cfg.AssessmentID,
		ConfigRules:    e.mapping.ChecksFor(models.SourceConfig),
		EventNames:     e.mapping.ChecksFor(models.SourceCloudTrail),
		SourceTimeout:  e.cfg.FetchTimeout(),
	})

	rows := transform.New(e.mapping, now, e.log).Transform(set)
	summary := models.Summarize(rows)

	var failed []models.NormalizedRow
	for _, row := range rows {
		if row.Status == models.StatusFail {
			failed = append(failed, row)
		}
	}
	sort.SliceStable(failed, func(i, j int) bool {
		return failed[i].SeverityRank > failed[j].SeverityRank
	})

	meta := export.RunMeta{
		ReportID:    reportID,
		GeneratedAt: now,
		AccountID:   scope.AccountID,
		Region:      scope.Region,
		WindowDays:  e.cfg.WindowDays,
	}

	location, err := e.newExporter(scope.Config).Export(ctx, rows, summary, meta)
	if err != nil {
		return nil, fmt.Errorf("export report artifact: %w", err)
	}

	result := &models.RunResult{
		ReportID:     reportID,
		GeneratedAt:  now,
		AccountID:    scope.AccountID,
		Region:       scope.Region,
		WindowDays:   e.cfg.WindowDays,
		ArtifactPath: location.Path,
		DownloadURL:  location.DownloadURL,
		Summary:      summary,
		FailedRows:   failed,
	}
	for _, sr := range set.Results {
		if sr.Err != nil {
			if result.SourceErrors == nil {
				result.SourceErrors = make(map[string]string)
			}
			result.SourceErrors[string(sr.Source)] = sr.Err.Error()
		}
	}

	if notifier := e.newNotifier(scope.Config); notifier != nil {
		if err := notifier.NotifyArtifact(ctx, location, summary, meta); err != nil {
			// Fire-and-forget: the artifact exists, so the run succeeded.
			e.log.WithError(err).Warn("report notification failed")
			result.NotifyError = err.Error()
		} else {
			result.Notified = true
		}
	}

	e.log.WithFields(logrus.Fields{
		"report":   reportID,
		"artifact": location.Path,
		"rows":     summary.TotalRows,
		"fail":     summary.FailRows,
	}).Info("pipeline run complete")
	return result, nil
}
