package misc

import (
	"context"
	"fmt"
	"time"

	"apollo-supervisor/cmd/root"
	"apollo-supervisor/internal/rpc"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show supervisor health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		resp, err := rpc.NewClient(nil).Healthz(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Status: %s (version %s, up %s)\n", resp.Status, resp.Version, resp.Uptime)
		fmt.Printf("Core services: %d/%d running\n", resp.Metrics.RunningCoreServices, resp.Metrics.TotalCoreServices)
		fmt.Printf("Apps: %d running, %d healthy, %d ports assigned\n",
			resp.Metrics.RunningApps, resp.Metrics.HealthyApps, resp.Metrics.AssignedPorts)
		fmt.Printf("Requests: %d total, %d errors\n", resp.Metrics.TotalRequests, resp.Metrics.ErrorRequests)
		return nil
	},
}

func init() {
	root.RootCmd.AddCommand(healthCmd)
}
