package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/putscan/internal/brain"
	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/export"
)

// scanCmd runs one scan
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one put scan and print the ranked table",
	Long: `Connect to the gateway, scan every symbol and print opportunities ranked
by annualized ROI. Results are saved to scan_results_<timestamp>.csv unless
--no-export is given. A symbol that fails any stage is skipped.

Example:
  go run ./cmd/putscan scan
  go run ./cmd/putscan scan --config configs/scan.yaml
  go run ./cmd/putscan scan --symbols NVDA,TSLA --output-dir out`,
	RunE: runScan,
}

var (
	scanConfigPath string
	scanSymbols    []string
	scanOutputDir  string
	scanNoExport   bool
	scanNoProgress bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanConfigPath, "config", "", "scan config YAML (default $SCAN_CONFIG or built-in)")
	scanCmd.Flags().StringSliceVar(&scanSymbols, "symbols", nil, "symbols to scan, overrides the config universe")
	scanCmd.Flags().StringVar(&scanOutputDir, "output-dir", "", "directory for the CSV (default $OUTPUT_DIR)")
	scanCmd.Flags().BoolVar(&scanNoExport, "no-export", false, "print only, do not write a CSV")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "hide the progress bar")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := initDeps(ctx, scanConfigPath)
	if err != nil {
		return err
	}
	defer d.Close()

	opts := brain.Options{Metrics: d.metrics}
	if !scanNoExport {
		dir := scanOutputDir
		if dir == "" {
			dir = appConfig.OutputDir
		}
		opts.Exporter = export.NewExporter(dir)
	}
	if !scanNoProgress {
		opts.Progress = os.Stderr
	}

	symbols := normalizeSymbols(scanSymbols)
	if len(symbols) == 0 {
		symbols = d.scan.NormalizedSymbols()
	}

	PrintScanHeader(ScanMetadata{
		ScanID:      d.scan.Meta.ScanID,
		Symbols:     strings.Join(symbols, ", "),
		TargetDays:  d.scan.Expirations.TargetDays,
		OTMBand:     fmt.Sprintf("%.0f%% ~ %.0f%%", d.scan.Strikes.MinOTMPct*100, d.scan.Strikes.MaxOTMPct*100),
		Gateway:     appConfig.Gateway.BaseURL(),
		ExportState: exportState(opts.Exporter != nil),
	})

	o := brain.NewOrchestrator(d.newGateway(), d.scan, opts, appLogger)
	result, err := o.Run(ctx, brain.RunConfig{Symbols: symbols})
	if err != nil {
		if contracts.IsFatal(err) {
			PrintError(fmt.Sprintf("Connection failed: %v", err))
			fmt.Println("Please ensure the IBKR gateway is running and the session is authenticated.")
		}
		return err
	}

	printSkips(result.Skipped)

	if result.Empty() {
		fmt.Println()
		fmt.Println("No opportunities found.")
		return nil
	}

	fmt.Println()
	if err := export.RenderTable(os.Stdout, result.Rows); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	if result.ExportPath != "" {
		fmt.Printf("\nResults saved to %s\n", result.ExportPath)
	}

	PrintScanSummary(result)
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func exportState(enabled bool) string {
	if enabled {
		return "csv"
	}
	return "disabled"
}

func printSkips(skips []brain.Skip) {
	if len(skips) == 0 {
		return
	}
	fmt.Println()
	for _, s := range skips {
		PrintWarning(fmt.Sprintf("%s skipped at %s: %s", s.Symbol, s.Stage.Description(), s.Reason))
	}
}
