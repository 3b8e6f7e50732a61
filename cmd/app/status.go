package app

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

var showPorts bool

var statusCmd = &cobra.Command{
	Use:   "status [folder]",
	Short: "Show app status",
	Long:  "Show status of all running apps, or of the named one. With --ports the port assignment table is printed too.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return showStatus(ctx, rpc.NewClient(nil), args)
	},
}

func showStatus(ctx context.Context, client *rpc.Client, args []string) error {
	apps := map[string]models.AppStatus{}
	if len(args) == 1 {
		st, err := client.AppStatus(ctx, args[0])
		if err != nil {
			return err
		}
		apps[args[0]] = *st
	} else {
		all, err := client.AppsStatus(ctx)
		if err != nil {
			return err
		}
		apps = all
	}

	folders := make([]string, 0, len(apps))
	for folder := range apps {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Folder", "Source", "Category", "PID", "Port", "Health", "Running", "Last Check"})
	for _, folder := range folders {
		st := apps[folder]
		lastCheck := "-"
		if !st.LastCheck.IsZero() {
			lastCheck = st.LastCheck.Format("15:04:05")
		}
		t.AppendRow(table.Row{folder, st.Source, st.Category, st.Pid, st.Port, st.Status, st.Running, lastCheck})
	}
	t.Render()

	if showPorts {
		return printPorts(ctx, client)
	}
	return nil
}

func printPorts(ctx context.Context, client *rpc.Client) error {
	ports, err := client.Ports(ctx)
	if err != nil {
		return err
	}
	assigned := make([]int, 0, len(ports.Assigned))
	for port := range ports.Assigned {
		assigned = append(assigned, port)
	}
	sort.Ints(assigned)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Ports %d-%d, %d available", ports.Min, ports.Max, ports.Available)
	t.AppendHeader(table.Row{"Port", "PID"})
	for _, port := range assigned {
		t.AppendRow(table.Row{port, ports.Assigned[port]})
	}
	for _, port := range ports.Reserved {
		t.AppendRow(table.Row{port, "(reserved)"})
	}
	t.Render()
	return nil
}

func init() {
	statusCmd.Flags().BoolVarP(&showPorts, "ports", "p", false, "also print the port assignment table")
	appCmd.AddCommand(statusCmd)
}
