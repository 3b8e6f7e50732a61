package core

import (
	"context"
	"fmt"

	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/rpc"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop [service]",
	Short: "Stop core services",
	Long:  "Stop all core services, or only the named one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return stopCore(ctx, rpc.NewClient(nil), args)
	},
}

func stopCore(ctx context.Context, client *rpc.Client, args []string) error {
	if len(args) == 1 {
		result, err := client.StopCoreService(ctx, args[0])
		if err != nil {
			return fmt.Errorf("stop %s failed: %w", args[0], err)
		}
		printResults([]models.CoreServiceResult{*result})
		return nil
	}
	resp, err := client.StopCore(ctx)
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	printResults(resp.Details)
	return nil
}

func init() {
	coreCmd.AddCommand(stopCmd)
}
