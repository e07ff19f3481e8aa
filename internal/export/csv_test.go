package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVDetail_Preamble(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSVDetail(&buf, sampleRows(), testMeta))

	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "# Compliance Evidence Report", lines[0])
	assert.Equal(t, "# Generated: 2026-03-02T12:00:00Z", lines[1])
	assert.Equal(t, "# Account: 111122223333", lines[2])
	assert.Equal(t, "# Record Count: 4", lines[3])
}

func TestWriteCSVDetail_DataParsesAfterPreamble(t *testing.T) {
	var buf bytes.Buffer
	rows := sampleRows()
	require.NoError(t, WriteCSVDetail(&buf, rows, testMeta))

	// Strip the # preamble, then the remainder must be well-formed CSV.
	var data []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		data = append(data, line)
	}

	records, err := csv.NewReader(strings.NewReader(strings.Join(data, "\n"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(rows)+1)

	assert.Equal(t, detailHeader, records[0])
	assert.Equal(t, "AC-2", records[1][0])
	assert.Equal(t, "fail", records[1][3])
	assert.Equal(t, "false", records[1][10], "SLA breach column renders as bool text")
}

func TestWriteCSVDetail_EmptyRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSVDetail(&buf, nil, testMeta))

	assert.Contains(t, buf.String(), "# Record Count: 0")
	assert.Contains(t, buf.String(), "Control ID")
}
