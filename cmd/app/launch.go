package app

import (
	"context"
	"fmt"

	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/rpc"

	"github.com/spf13/cobra"
)

var launchCmd = &cobra.Command{
	Use:   "launch <source> <category> <folder>",
	Short: "Launch an app and print its URL",
	Long:  "Launch apps/<source>/<category>/<folder>. If the app is already running its existing URL is printed.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return launchApp(ctx, rpc.NewClient(nil), models.AppRequest{
			Source:   args[0],
			Category: args[1],
			Folder:   args[2],
		})
	},
}

func launchApp(ctx context.Context, client *rpc.Client, req models.AppRequest) error {
	resp, err := client.Launch(ctx, req)
	if err != nil {
		return fmt.Errorf("launch %s failed: %w", req.Folder, err)
	}
	fmt.Println(resp.Message)
	fmt.Println(resp.URL)
	return nil
}

func init() {
	appCmd.AddCommand(launchCmd)
}
