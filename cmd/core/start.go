package core

import (
	"context"
	"fmt"

	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/rpc"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start [service]",
	Short: "Start core services",
	Long:  "Start all core services, or only the named one. Services already running are left alone.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return startCore(ctx, rpc.NewClient(nil), args)
	},
}

func startCore(ctx context.Context, client *rpc.Client, args []string) error {
	if len(args) == 1 {
		result, err := client.StartCoreService(ctx, args[0])
		if err != nil {
			return fmt.Errorf("start %s failed: %w", args[0], err)
		}
		printResults([]models.CoreServiceResult{*result})
		return nil
	}
	resp, err := client.StartCore(ctx)
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	printResults(resp.Details)
	return nil
}

func init() {
	coreCmd.AddCommand(startCmd)
}
