package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fafo-security/grc-pipeline/internal/config"
	"github.com/fafo-security/grc-pipeline/internal/convert"
	"github.com/fafo-security/grc-pipeline/internal/engine"
	"github.com/fafo-security/grc-pipeline/internal/logging"
	"github.com/fafo-security/grc-pipeline/internal/mapping"
	"github.com/fafo-security/grc-pipeline/internal/models"
	"github.com/fafo-security/grc-pipeline/internal/output"
	"github.com/fafo-security/grc-pipeline/internal/providers/aws/common"
	"github.com/fafo-security/grc-pipeline/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "grc",
		Short: "grc — compliance evidence pipeline for AWS",
	}
	root.AddCommand(newReportCmd())
	root.AddCommand(newFindingsCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compliance report commands",
	}
	cmd.AddCommand(newReportRunCmd())
	return cmd
}

func newReportRunCmd() *cobra.Command {
	var (
		configPath  string
		mappingPath string
		destination string
		profile     string
		region      string
		assessment  string
		windowDays  int
		reportFmt   string
		summary     bool
		output      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch evidence, build the report artifact, and deliver it",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			// Flags win over the config file and environment.
			if mappingPath != "" {
				runCfg.MappingPath = mappingPath
			}
			if destination != "" {
				runCfg.Destination = destination
			}
			if profile != "" {
				runCfg.Profile = profile
			}
			if region != "" {
				runCfg.Region = region
			}
			if assessment != "" {
				runCfg.AssessmentID = assessment
			}
			if windowDays > 0 {
				runCfg.WindowDays = windowDays
			}
			if err := runCfg.Validate(); err != nil {
				return err
			}

			m, err := mapping.Load(runCfg.MappingPath)
			if err != nil {
				return fmt.Errorf("load control mapping: %w", err)
			}

			log := logging.New(runCfg.LogLevel)
			eng := engine.NewReportEngine(runCfg, m, log)

			result, err := eng.RunOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("report run failed: %w", err)
			}

			if output != "" {
				if err := writeResultToFile(output, result); err != nil {
					return err
				}
			}

			if summary {
				printRunSummary(cmd.OutOrStdout(), result)
				return nil
			}
			if reportFmt == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printRunTable(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Run configuration file (YAML); GRC_* environment variables override it")
	cmd.Flags().StringVar(&mappingPath, "mapping", "", "Control mapping YAML file (overrides config)")
	cmd.Flags().StringVar(&destination, "dest", "", "Artifact destination: local path or s3://bucket/prefix (overrides config)")
	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile name (default: uses environment / default profile)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region to collect evidence from")
	cmd.Flags().StringVar(&assessment, "assessment", "", "Audit Manager assessment ID to walk")
	cmd.Flags().IntVar(&windowDays, "window", 0, "Evidence lookback window in days (default from config: 7)")
	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: json or table")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print compact summary: artifact location, row totals, compliance rate")
	cmd.Flags().StringVar(&output, "output", "", "Write the full JSON run result to this file path (in addition to stdout output)")

	return cmd
}

func newFindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Scanner finding commands",
	}
	cmd.AddCommand(newFindingsImportCmd())
	return cmd
}

func newFindingsImportCmd() *cobra.Command {
	var (
		sastPath  string
		dastPath  string
		profile   string
		region    string
		reportFmt string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Convert GitLab scanner reports to ASFF and import them into Security Hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logLevel)
			provider := common.NewDefaultAWSClientProvider()

			scope, err := provider.LoadScope(cmd.Context(), profile, region)
			if err != nil {
				return fmt.Errorf("resolve AWS scope: %w", err)
			}

			importer := convert.NewImporter(scope.Config, log)
			result, err := runFindingsImport(cmd.Context(), importer, scope, log, []scannerReport{
				{Product: "GitLab-SAST", Path: sastPath},
				{Product: "GitLab-DAST", Path: dastPath},
			})
			if err != nil {
				return err
			}

			if reportFmt == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printImportTable(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&sastPath, "sast-report", "gl-sast-report.json", "GitLab SAST report path (skipped when the file is absent)")
	cmd.Flags().StringVar(&dastPath, "dast-report", "gl-dast-report.json", "GitLab DAST report path (skipped when the file is absent)")
	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile name (default: uses environment / default profile)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region of the Security Hub destination")
	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: json or table")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// writeResultToFile serialises result as indented JSON and writes it to path,
// creating or overwriting the file. It does not affect stdout output.
func writeResultToFile(path string, result *models.RunResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result file %q: %w", path, err)
	}
	return nil
}

// printJSON writes v as indented JSON to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRunSummary renders a compact summary view to w:
//   - Account / region / window header
//   - Artifact location and download link
//   - Row totals and compliance rate
//   - Per-source collection errors, if any
//
// It reuses the already-computed RunResult; no pipeline logic is duplicated.
func printRunSummary(w io.Writer, result *models.RunResult) {
	s := result.Summary

	fmt.Fprintf(w, "Report:   %s\n", result.ReportID)
	fmt.Fprintf(w, "Account:  %s\n", result.AccountID)
	fmt.Fprintf(w, "Region:   %s\n", result.Region)
	fmt.Fprintf(w, "Window:   %d days\n", result.WindowDays)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Artifact:  %s\n", result.ArtifactPath)
	if result.DownloadURL != "" {
		fmt.Fprintf(w, "Download:  %s\n", result.DownloadURL)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Rows:       %d\n", s.TotalRows)
	fmt.Fprintf(w, "Controls:         %d\n", s.TotalControls)
	fmt.Fprintf(w, "Compliance Rate:  %.1f%%\n", s.ComplianceRate)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Status Breakdown")
	fmt.Fprintf(w, "  %-15s  %d\n", "PASS", s.PassRows)
	fmt.Fprintf(w, "  %-15s  %d\n", "FAIL", s.FailRows)
	fmt.Fprintf(w, "  %-15s  %d\n", "MANUAL", s.ManualRows)
	fmt.Fprintf(w, "  %-15s  %d\n", "NOT APPLICABLE", s.NotApplicableRows)

	if len(result.SourceErrors) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Source Errors")
	for _, source := range sortedKeys(result.SourceErrors) {
		fmt.Fprintf(w, "  %-14s  %s\n", source, result.SourceErrors[source])
	}
}

// printRunTable renders a one-line run header followed by the status table.
func printRunTable(w io.Writer, result *models.RunResult) {
	s := result.Summary
	fmt.Fprintf(w,
		"Report: %-22s  Account: %-14s  Region: %-14s  Rows: %d  Compliance: %.1f%%\n",
		result.ReportID,
		result.AccountID,
		result.Region,
		s.TotalRows,
		s.ComplianceRate,
	)
	fmt.Fprintf(w, "Artifact: %s\n", result.ArtifactPath)
	if result.DownloadURL != "" {
		fmt.Fprintf(w, "Download: %s\n", result.DownloadURL)
	}

	fmt.Fprintln(w)
	output.RenderFailures(w, result.FailedRows, output.TableOptions{
		IncludeOwner: true,
		IncludeAge:   true,
	})

	if len(result.SourceErrors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%-16s  %s\n", "SOURCE", "ERROR")
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, source := range sortedKeys(result.SourceErrors) {
			fmt.Fprintf(w, "%-16s  %s\n", source, result.SourceErrors[source])
		}
	}
	if result.NotifyError != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Notification failed: %s\n", result.NotifyError)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
