package app

import (
	"context"
	"fmt"

	"apollo-supervisor/internal/rpc"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop <folder>",
	Short: "Stop a running app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return stopApp(ctx, rpc.NewClient(nil), args[0])
	},
}

func stopApp(ctx context.Context, client *rpc.Client, folder string) error {
	resp, err := client.StopApp(ctx, folder)
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	if resp.Warning != "" {
		fmt.Printf("WARNING: %s\n", resp.Warning)
	}
	return nil
}

func init() {
	appCmd.AddCommand(stopCmd)
}
