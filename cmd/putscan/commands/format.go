package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/putscan/internal/brain"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// ScanMetadata holds the header shown before a scan
type ScanMetadata struct {
	ScanID      string
	Symbols     string
	TargetDays  []int
	OTMBand     string
	Gateway     string
	ExportState string
}

// PrintScanHeader prints a formatted scan header
func PrintScanHeader(meta ScanMetadata) {
	days := make([]string, len(meta.TargetDays))
	for i, d := range meta.TargetDays {
		days[i] = fmt.Sprintf("%dd", d)
	}

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Put Scan: %s\n", meta.ScanID)
	PrintSeparator()
	PrintKeyValue("Symbols", meta.Symbols, 10)
	PrintKeyValue("Targets", strings.Join(days, ", "), 10)
	PrintKeyValue("OTM band", meta.OTMBand, 10)
	PrintKeyValue("Gateway", meta.Gateway, 10)
	PrintKeyValue("Export", meta.ExportState, 10)
	PrintSeparator()
}

// PrintScanSummary prints the run footer
func PrintScanSummary(result *brain.RunResult) {
	fmt.Println()
	PrintSeparator()
	PrintKeyValue("Run", result.RunID, 10)
	PrintKeyValue("Rows", fmt.Sprintf("%d from %d symbols", result.Summary.Count, result.Summary.Symbols), 10)
	PrintKeyValue("Ann. ROI", fmt.Sprintf("max %.2f%% / median %.2f%% / mean %.2f%%",
		result.Summary.MaxAnn, result.Summary.MedianAnn, result.Summary.MeanAnn), 10)
	PrintKeyValue("Best", result.Summary.Top, 10)
	PrintKeyValue("Duration", result.Duration.Round(time.Millisecond).String(), 10)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}
