package main

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sentinelops/warden/internal/approval"
	"github.com/sentinelops/warden/internal/coordinator"
	"github.com/sentinelops/warden/internal/task"
)

var statusFilter string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show coordinator state",
	Long: `Display the tasks the coordinator is tracking, pending approval
requests, and lifetime counters.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "Only show tasks in this lifecycle state")
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyles = map[task.Status]lipgloss.Style{
		task.StatusReady:            lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		task.StatusRunning:          lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		task.StatusAwaitingApproval: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		task.StatusFailed:           lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		task.StatusEscalated:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	path := "/api/tasks"
	if statusFilter != "" {
		path += "?status=" + statusFilter
	}
	var tasks []task.Task
	if err := client.get(path, &tasks); err != nil {
		return err
	}
	var stats coordinator.Stats
	if err := client.get("/api/stats", &stats); err != nil {
		return err
	}
	var open []approval.Request
	if err := client.get("/api/approvals", &open); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tracked tasks.")
	} else {
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
		printTaskTable(tasks)
	}

	if len(open) > 0 {
		fmt.Println()
		fmt.Println(headerStyle.Render("Pending Approvals"))
		for _, req := range open {
			fmt.Printf("  %s  task %s  %s\n", req.ID, req.TaskID,
				dimStyle.Render("deadline "+req.Deadline.Local().Format("15:04:05")))
		}
	}

	fmt.Println()
	fmt.Printf("Submitted %d, succeeded %d, retries %d, escalations %d, cancelled %d\n",
		stats.Tasks.Submitted, stats.Tasks.Succeeded, stats.Tasks.Retries,
		stats.Tasks.Escalations, stats.Tasks.Cancellations)
	if stats.EventsDropped > 0 {
		fmt.Printf("Events dropped: %d\n", stats.EventsDropped)
	}
	return nil
}

func printTaskTable(tasks []task.Task) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("%-36s  %-18s  %-12s  %s", "ID", "STATUS", "RISK/URGENCY", "DESCRIPTION")))
	for _, t := range tasks {
		status := string(t.Status)
		if style, ok := statusStyles[t.Status]; ok {
			status = style.Render(fmt.Sprintf("%-18s", status))
		} else {
			status = dimStyle.Render(fmt.Sprintf("%-18s", status))
		}
		levels := string(t.Risk) + "/" + string(t.Urgency)
		desc := t.Description
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		if t.RetryCount > 0 {
			desc += dimStyle.Render(fmt.Sprintf(" (attempt %d/%d)", t.RetryCount, t.MaxRetries))
		}
		fmt.Printf("%-36s  %s  %-12s  %s\n", t.ID, status, levels, desc)
	}
}
