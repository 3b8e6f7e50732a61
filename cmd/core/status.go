package core

import (
	"context"
	"os"
	"sort"
	"time"

	"apollo-supervisor/internal/models"
	"apollo-supervisor/internal/rpc"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [service]",
	Short: "Show core service status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return showStatus(ctx, rpc.NewClient(nil), args)
	},
}

func showStatus(ctx context.Context, client *rpc.Client, args []string) error {
	status := map[string]models.CoreServiceStatus{}
	if len(args) == 1 {
		st, err := client.GetCoreService(ctx, args[0])
		if err != nil {
			return err
		}
		status[args[0]] = *st
	} else {
		all, err := client.CoreStatus(ctx)
		if err != nil {
			return err
		}
		status = all
	}

	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Service", "Status", "PID", "Port", "Restarts", "Uptime", "Last Error"})
	for _, name := range names {
		st := status[name]
		uptime := "-"
		if st.Running && !st.StartTime.IsZero() {
			uptime = time.Since(st.StartTime).Round(time.Second).String()
		}
		t.AppendRow(table.Row{name, st.Status, pidText(st.Pid), portText(st.Port), st.RestartCount, uptime, st.LastError})
	}
	t.Render()
	return nil
}

func init() {
	coreCmd.AddCommand(statusCmd)
}
