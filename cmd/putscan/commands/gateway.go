package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// gatewayCmd groups gateway diagnostics
var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "IBKR Client Portal gateway diagnostics",
}

var gatewayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the gateway session (authenticated / connected / competing)",
	Long: `Ask the gateway for its auth status. A scan needs an authenticated,
connected, non-competing session.

Example:
  go run ./cmd/putscan gateway status`,
	RunE: runGatewayStatus,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
	gatewayCmd.AddCommand(gatewayStatusCmd)
}

func runGatewayStatus(cmd *cobra.Command, args []string) error {
	d, err := initDeps(cmd.Context(), "")
	if err != nil {
		return err
	}
	defer d.Close()

	gw := d.newGateway()
	status, err := gw.Status(cmd.Context())
	if err != nil {
		PrintError(fmt.Sprintf("Gateway unreachable at %s: %v", appConfig.Gateway.BaseURL(), err))
		fmt.Println("Please ensure the IBKR gateway is running and the session is authenticated.")
		return err
	}

	fmt.Println()
	PrintKeyValue("Gateway", appConfig.Gateway.BaseURL(), 14)
	PrintKeyValue("Server", fmt.Sprintf("%s %s", status.ServerInfo.ServerName, status.ServerInfo.ServerVersion), 14)
	PrintKeyValue("Authenticated", fmt.Sprintf("%t", status.Authenticated), 14)
	PrintKeyValue("Connected", fmt.Sprintf("%t", status.Connected), 14)
	PrintKeyValue("Competing", fmt.Sprintf("%t", status.Competing), 14)
	if status.Message != "" {
		PrintKeyValue("Message", status.Message, 14)
	}
	fmt.Println()

	if !status.Ready() {
		PrintWarning("Session is not ready for market data; log in through the gateway web page")
		return fmt.Errorf("gateway session not ready")
	}

	PrintSuccess("Gateway session ready")
	return nil
}
