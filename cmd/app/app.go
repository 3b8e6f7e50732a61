package app

import (
	"time"

	"apollo-supervisor/cmd/root"

	"github.com/spf13/cobra"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "App operations (launch/stop/status)",
	Long:  `Launch, stop and inspect on-demand apps through a running supervisor server`,
}

const appExample = `  # launch apps/Apollo/productivity/slides
  apollo-supervisor app launch Apollo productivity slides
  # stop it
  apollo-supervisor app stop slides`

const requestTimeout = 60 * time.Second

func init() {
	root.RootCmd.AddCommand(appCmd)

	appCmd.Example = appExample
}
