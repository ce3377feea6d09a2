package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/putscan/pkg/config"
	"github.com/wonny/putscan/pkg/logger"
)

var (
	// Global flags
	env     string
	verbose bool

	// Set by PersistentPreRunE for every subcommand
	appConfig *config.Config
	appLogger *logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "putscan",
	Short: "Cash-secured put scanner (IBKR Client Portal)",
	Long: `putscan scans a universe of stocks for cash-secured put opportunities.

For every symbol: resolve the price, pick expirations near the target days,
keep OTM put strikes inside the configured band, fetch premiums and rank every
contract by annualized return on collateral.

Usage:
  go run ./cmd/putscan [command]

Examples:
  go run ./cmd/putscan scan
  go run ./cmd/putscan scan --symbols NVDA,AMD --no-export
  go run ./cmd/putscan gateway status
  go run ./cmd/putscan scheduler start`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// ExecuteContext runs the root command; ctx is cancelled on Ctrl+C
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production), overrides ENV")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}

// setup loads process config and the logger once per invocation
func setup(cmd *cobra.Command, args []string) error {
	if env != "" {
		if err := os.Setenv("ENV", env); err != nil {
			return fmt.Errorf("set ENV: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appConfig = cfg
	appLogger = logger.New(cfg)
	if verbose {
		logger.SetVerbose()
	}
	return nil
}
