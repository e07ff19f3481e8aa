package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// ANSI color codes for severity output (used when Colored=true).
const (
	ansiReset   = "\033[0m"
	ansiBoldRed = "\033[1;31m"
	ansiRed     = "\033[0;31m"
	ansiYellow  = "\033[0;33m"
	ansiBlue    = "\033[0;34m"
)

// TableOptions controls which columns RenderFailures renders and how severity
// is coloured.
type TableOptions struct {
	// Colored wraps severity labels with ANSI codes. Default false (CI-safe).
	Colored bool

	// IncludeOwner adds an OWNER column when any row carries an owner tag.
	IncludeOwner bool

	// IncludeAge adds AGE(D) and SLA columns.
	IncludeAge bool
}

// ColorSeverity wraps a severity string with ANSI codes when colored is true.
// When colored is false the string is returned unchanged (CI-safe default).
func ColorSeverity(sev models.Severity, colored bool) string {
	s := string(sev)
	if !colored {
		return s
	}
	switch sev {
	case models.SeverityCritical:
		return ansiBoldRed + s + ansiReset
	case models.SeverityHigh:
		return ansiRed + s + ansiReset
	case models.SeverityMedium:
		return ansiYellow + s + ansiReset
	case models.SeverityLow:
		return ansiBlue + s + ansiReset
	default:
		return s
	}
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// hasOwner reports whether any row carries an owner tag.
func hasOwner(rows []models.NormalizedRow) bool {
	for _, r := range rows {
		if r.Owner != "" {
			return true
		}
	}
	return false
}

// severityCell returns the severity padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are plain
// so subsequent columns stay visually aligned regardless of terminal ANSI support.
func severityCell(sev models.Severity, width int, colored bool) string {
	text := string(sev)
	if !colored {
		return fmt.Sprintf("%-*s", width, text)
	}
	var code string
	switch sev {
	case models.SeverityCritical:
		code = ansiBoldRed
	case models.SeverityHigh:
		code = ansiRed
	case models.SeverityMedium:
		code = ansiYellow
	case models.SeverityLow:
		code = ansiBlue
	default:
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max bytes for ID/label columns.
// A single-char ellipsis replaces the last byte when truncation occurs.
func truncateField(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// RenderFailures writes a formatted table of failing rows to w.
// Columns are dynamically selected based on opts; the separator line width is
// derived from the header row so all rows align correctly.
//
// Column order:
//
//	CONTROL ID  RESOURCE ID  SOURCE  CHECK ID  SEVERITY  [OWNER]  [AGE(D)  SLA]  DETAIL
func RenderFailures(w io.Writer, rows []models.NormalizedRow, opts TableOptions) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No failed findings.")
		return
	}

	showOwner := opts.IncludeOwner && hasOwner(rows)

	// Fixed column display widths.
	const (
		wControl  = 16
		wResource = 30
		wSource   = 14
		wCheck    = 24
		wSeverity = 13
		wOwner    = 14
		wAge      = 6
		wSLA      = 8
		wDetail   = 55
	)

	// Build the header row.
	var hb strings.Builder
	hb.WriteString(fmt.Sprintf("%-*s", wControl, "CONTROL ID"))
	hb.WriteString(fmt.Sprintf("  %-*s", wResource, "RESOURCE ID"))
	hb.WriteString(fmt.Sprintf("  %-*s", wSource, "SOURCE"))
	hb.WriteString(fmt.Sprintf("  %-*s", wCheck, "CHECK ID"))
	hb.WriteString(fmt.Sprintf("  %-*s", wSeverity, "SEVERITY"))
	if showOwner {
		hb.WriteString(fmt.Sprintf("  %-*s", wOwner, "OWNER"))
	}
	if opts.IncludeAge {
		hb.WriteString(fmt.Sprintf("  %-*s", wAge, "AGE(D)"))
		hb.WriteString(fmt.Sprintf("  %-*s", wSLA, "SLA"))
	}
	hb.WriteString(fmt.Sprintf("  %-*s", wDetail, "DETAIL"))
	header := hb.String()

	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, r := range rows {
		var rb strings.Builder
		rb.WriteString(fmt.Sprintf("%-*s", wControl, truncateField(r.ControlID, wControl)))
		rb.WriteString(fmt.Sprintf("  %-*s", wResource, truncateField(r.ResourceID, wResource)))
		rb.WriteString(fmt.Sprintf("  %-*s", wSource, truncateField(string(r.Source), wSource)))
		rb.WriteString(fmt.Sprintf("  %-*s", wCheck, truncateField(r.CheckID, wCheck)))
		rb.WriteString("  " + severityCell(r.Severity, wSeverity, opts.Colored))
		if showOwner {
			rb.WriteString(fmt.Sprintf("  %-*s", wOwner, truncateField(r.Owner, wOwner)))
		}
		if opts.IncludeAge {
			rb.WriteString(fmt.Sprintf("  %-*d", wAge, r.AgeDays))
			rb.WriteString(fmt.Sprintf("  %-*s", wSLA, slaCell(r.SLABreach)))
		}
		rb.WriteString(fmt.Sprintf("  %-*s", wDetail, ShortenMessage(r.Detail, wDetail)))
		fmt.Fprintln(w, rb.String())
	}
}

// slaCell renders the SLA column value for one row.
func slaCell(breached bool) string {
	if breached {
		return "BREACH"
	}
	return "ok"
}
