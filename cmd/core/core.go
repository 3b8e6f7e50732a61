package core

import (
	"os"
	"time"

	"apollo-supervisor/cmd/root"
	"apollo-supervisor/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var coreCmd = &cobra.Command{
	Use:   "core",
	Short: "Core service operations (start/stop/status)",
	Long:  `Core service operations (start/stop/status), the supervisor server must be running`,
}

const coreExample = `  # start all core services
  apollo-supervisor core start
  # restart the backend only
  apollo-supervisor core stop backend && apollo-supervisor core start backend`

// requestTimeout 需要大于stop_timeout+kill_wait
const requestTimeout = 60 * time.Second

func init() {
	root.RootCmd.AddCommand(coreCmd)

	coreCmd.Example = coreExample
}

func printResults(results []models.CoreServiceResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Service", "Outcome", "PID", "Port", "Message"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Name, r.Outcome, pidText(r.Pid), portText(r.Port), r.Message})
	}
	t.Render()
}

func pidText(pid int) interface{} {
	if pid <= 0 {
		return "-"
	}
	return pid
}

func portText(port int) interface{} {
	if port <= 0 {
		return "-"
	}
	return port
}
