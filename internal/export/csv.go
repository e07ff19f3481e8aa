package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/fafo-security/grc-pipeline/internal/models"
)

// WriteCSVDetail writes the detail view as CSV with a #-prefixed metadata
// preamble (generation time, record count) so the recipient can verify
// freshness and completeness before opening the data.
func WriteCSVDetail(w io.Writer, rows []models.NormalizedRow, meta RunMeta) error {
	preamble := fmt.Sprintf(
		"# Compliance Evidence Report\n# Generated: %s\n# Account: %s\n# Record Count: %d\n#\n",
		meta.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
		meta.AccountID,
		len(rows),
	)
	if _, err := io.WriteString(w, preamble); err != nil {
		return fmt.Errorf("write CSV metadata: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(detailHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, 0, len(detailHeader))
		for _, v := range rowValues(row) {
			switch t := v.(type) {
			case string:
				record = append(record, t)
			case int:
				record = append(record, strconv.Itoa(t))
			case bool:
				record = append(record, strconv.FormatBool(t))
			default:
				record = append(record, fmt.Sprint(t))
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
