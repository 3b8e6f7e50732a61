package misc

import (
	"context"
	"fmt"
	"time"

	"apollo-supervisor/cmd/root"
	"apollo-supervisor/internal/rpc"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload server configuration",
	Long:  `Reload server configuration by calling the reload API of the running supervisor`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return reloadServerConfig(ctx, rpc.NewClient(nil))
	},
}

/**
 * Reload server configuration through the supervisor API
 * @param {context.Context} ctx - Context for request cancellation and timeout
 * @param {*rpc.Client} client - Supervisor API client
 * @returns {error} Returns error if reload fails, nil on success
 */
func reloadServerConfig(ctx context.Context, client *rpc.Client) error {
	resp, err := client.Reload(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload %s: %w", client.BaseURL(), err)
	}
	fmt.Println(resp.Message)
	return nil
}

func init() {
	root.RootCmd.AddCommand(reloadCmd)
}
