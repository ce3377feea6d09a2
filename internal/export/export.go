package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/putscan/internal/contracts"
)

// FileLayout is the timestamp format in export file names
const FileLayout = "20060102_150405"

// Headers are the output columns, shared by the table and the CSV
var Headers = []string{"Stock", "Price", "Expiration", "DTE", "Strike", "OTM %", "Premium", "ROI %", "Ann. ROI %"}

// Cells renders one row. Money and percentages use two decimals, OTM one.
// ⭐ SSOT: 결과 반올림은 여기서만 (계산/정렬은 원값 사용)
func Cells(r contracts.ScanRow) []string {
	return []string{
		r.Symbol,
		fixed(r.Price, 2),
		r.Expiration,
		strconv.Itoa(r.DTE),
		fixed(r.Strike, 2),
		fixed(r.OTMPct, 1),
		fixed(r.Premium, 2),
		fixed(r.ROIPct, 2),
		fixed(r.AnnualizedROIPct, 2),
	}
}

func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// RenderTable writes rows as an aligned text table
func RenderTable(w io.Writer, rows []contracts.ScanRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	writeLine := func(cells []string) {
		for _, c := range cells {
			fmt.Fprint(tw, c, "\t")
		}
		fmt.Fprintln(tw)
	}

	writeLine(Headers)
	dashes := make([]string, len(Headers))
	for i, h := range Headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	writeLine(dashes)

	for _, r := range rows {
		writeLine(Cells(r))
	}
	return tw.Flush()
}

// WriteCSV writes rows with a header line
func WriteCSV(w io.Writer, rows []contracts.ScanRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(Cells(r)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName returns scan_results_<YYYYMMDD_HHMMSS>.csv for the run start
func FileName(startedAt time.Time) string {
	return "scan_results_" + startedAt.Format(FileLayout) + ".csv"
}

// Exporter writes one result file per run into a directory
type Exporter struct {
	dir string
}

// NewExporter creates an exporter for dir ("" = current directory)
func NewExporter(dir string) *Exporter {
	if dir == "" {
		dir = "."
	}
	return &Exporter{dir: dir}
}

// Export writes rows to dir/FileName(startedAt) and returns the path.
// Empty result sets are not written.
func (e *Exporter) Export(rows []contracts.ScanRow, startedAt time.Time) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(e.dir, FileName(startedAt))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
