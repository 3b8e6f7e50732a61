package app

import (
	"context"
	"fmt"

	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/rpc"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <source> <category> <folder>",
	Short: "Start an app and print its PID and port",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return startApp(ctx, rpc.NewClient(nil), models.AppRequest{
			Source:   args[0],
			Category: args[1],
			Folder:   args[2],
		})
	},
}

func startApp(ctx context.Context, client *rpc.Client, req models.AppRequest) error {
	resp, err := client.StartApp(ctx, req)
	if err != nil {
		return fmt.Errorf("start %s failed: %w", req.Folder, err)
	}
	fmt.Println(resp.Message)
	// 已在运行时服务端不返回pid
	if resp.Pid > 0 {
		fmt.Printf("PID: %d, port: %d\n", resp.Pid, resp.Port)
	}
	return nil
}

func init() {
	appCmd.AddCommand(startCmd)
}
