package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fafo-security/grc-pipeline/internal/mapping"
	"github.com/fafo-security/grc-pipeline/internal/providers/aws/common"
)

// DoctorResult is the structured output of grc doctor. It can be serialised
// to JSON via --format=json or rendered as a human-readable table (default).
type DoctorResult struct {
	AWS struct {
		Profile     string `json:"profile,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		Region      string `json:"region,omitempty"`
		RegionsOK   bool   `json:"regions_ok"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	Mapping struct {
		Path     string   `json:"path"`
		Present  bool     `json:"present"`
		Valid    bool     `json:"valid"`
		Controls int      `json:"controls,omitempty"`
		Manual   int      `json:"manual_controls,omitempty"`
		Errors   []string `json:"errors,omitempty"`
	} `json:"mapping"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			profile, _ := cmd.Flags().GetString("profile")
			region, _ := cmd.Flags().GetString("region")
			mappingPath, _ := cmd.Flags().GetString("mapping")
			result, err := runDoctor(
				context.Background(),
				common.NewDefaultAWSClientProvider(),
				cmd.OutOrStdout(),
				format,
				profile,
				region,
				mappingPath,
			)
			if err != nil {
				// Rendering failure — let Cobra/main handle it.
				return err
			}
			if !result.OverallHealthy {
				// Exit directly so no error text reaches main.go's
				// fmt.Fprintln(os.Stderr, err) path.
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	cmd.Flags().String("profile", "", "AWS profile to use (default: credential chain)")
	cmd.Flags().String("region", "", "AWS region to probe")
	cmd.Flags().String("mapping", "grc-mapping.yaml", "Control mapping file to validate (optional)")
	return cmd
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result.
// The returned error covers only rendering failures (e.g. JSON encode error).
// Callers must inspect result.OverallHealthy to determine whether the
// environment is healthy; runDoctor itself never returns an error for an
// unhealthy result so that no error text leaks to callers (such as main).
func runDoctor(ctx context.Context, provider common.AWSClientProvider, w io.Writer, format, profile, region, mappingPath string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, provider, profile, region, mappingPath)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}

	return result, nil
}

// collectDoctorResult runs all environment checks and populates a DoctorResult.
// It performs no rendering; callers decide how to present the result.
func collectDoctorResult(ctx context.Context, provider common.AWSClientProvider, profile, region, mappingPath string) DoctorResult {
	var result DoctorResult

	// AWS: credentials → STS account ID → region discovery.
	// An empty profile string selects the default credential chain.
	if profile != "" {
		result.AWS.Profile = profile
	}
	scope, err := provider.LoadScope(ctx, profile, region)
	if err != nil {
		result.AWS.Error = err.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = scope.AccountID
		result.AWS.Region = scope.Region
		_, err = provider.ActiveRegions(ctx, scope)
		if err != nil {
			result.AWS.Error = err.Error()
		} else {
			result.AWS.RegionsOK = true
		}
	}

	// Mapping: stat → load → index (file is optional).
	result.Mapping.Path = mappingPath
	_, statErr := os.Stat(mappingPath)
	if statErr == nil {
		result.Mapping.Present = true
		m, loadErr := mapping.Load(mappingPath)
		if loadErr != nil {
			result.Mapping.Errors = []string{loadErr.Error()}
		} else {
			result.Mapping.Valid = true
			result.Mapping.Controls = len(m.Controls)
			result.Mapping.Manual = len(m.ManualControls())
		}
	} else if !os.IsNotExist(statErr) {
		// Stat error other than "not found" — treat as present but unreadable.
		result.Mapping.Present = true
		result.Mapping.Errors = []string{statErr.Error()}
	}

	result.OverallHealthy = result.AWS.Credentials &&
		result.AWS.RegionsOK &&
		(!result.Mapping.Present || result.Mapping.Valid)

	return result
}

// renderDoctorTable writes the human-readable diagnostic output from result to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	if result.AWS.Profile != "" {
		fmt.Fprintf(w, "\nAWS (profile: %s):\n", result.AWS.Profile)
	} else {
		fmt.Fprintln(w, "\nAWS:")
	}
	if !result.AWS.Credentials {
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
		doctorPrint(w, "STS Identity", "FAIL", "skipped")
		doctorPrint(w, "Regions API", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", "")
		doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID+", Region: "+result.AWS.Region)
		if result.AWS.RegionsOK {
			doctorPrint(w, "Regions API", "OK", "")
		} else {
			doctorPrint(w, "Regions API", "FAIL", result.AWS.Error)
		}
	}

	fmt.Fprintln(w, "\nControl Mapping:")
	if !result.Mapping.Present {
		doctorPrint(w, result.Mapping.Path+" present", "Not found (optional)", "")
	} else {
		doctorPrint(w, result.Mapping.Path+" present", "YES", "")
		if result.Mapping.Valid {
			doctorPrint(w, "Mapping valid", "OK", fmt.Sprintf("%d controls, %d manual", result.Mapping.Controls, result.Mapping.Manual))
		} else {
			for _, e := range result.Mapping.Errors {
				doctorPrint(w, "Mapping valid", "FAIL", e)
			}
		}
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
