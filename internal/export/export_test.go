package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/putscan/internal/contracts"
)

func sampleRows() []contracts.ScanRow {
	return []contracts.ScanRow{
		{
			Symbol: "NVDA", Price: 120.456, Expiration: "20240216", DTE: 30,
			Strike: 110, OTMPct: 8.6798, Premium: 1.235,
			ROIPct: 1.1227, AnnualizedROIPct: 13.6598,
		},
		{
			Symbol: "AMD", Price: 150, Expiration: "20240119", DTE: 1,
			Strike: 142.5, OTMPct: 5, Premium: 0.3,
			ROIPct: 0.2105, AnnualizedROIPct: 76.8421,
		},
	}
}

func TestCells(t *testing.T) {
	got := Cells(sampleRows()[0])
	assert.Equal(t, []string{"NVDA", "120.46", "20240216", "30", "110.00", "8.7", "1.24", "1.12", "13.66"}, got)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 1, 15, 9, 45, 3, 0, time.UTC)
	assert.Equal(t, "scan_results_20240115_094503.csv", FileName(ts))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, sampleRows()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Ann. ROI %")
	assert.Contains(t, lines[2], "NVDA")
	assert.Contains(t, lines[2], "13.66")
	assert.Contains(t, lines[3], "76.84")
}

func TestExporter_Export(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 1, 15, 9, 45, 3, 0, time.UTC)

	path, err := NewExporter(filepath.Join(dir, "out")).Export(sampleRows(), ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "scan_results_20240115_094503.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Headers, records[0])
	assert.Equal(t, "AMD", records[2][0])
}

func TestExporter_EmptyWritesNothing(t *testing.T) {
	dir := t.TempDir()

	path, err := NewExporter(dir).Export(nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
