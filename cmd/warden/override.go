package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentinelops/warden/internal/task"
)

var overrideCmd = &cobra.Command{
	Use:   "override <task-id> <risk> <urgency>",
	Short: "Override a task's risk and urgency",
	Long: `Reclassify a task that has not started running. The override is
recorded in the audit trail and the task's queue position is updated
to match its new severity.`,
	Args: cobra.ExactArgs(3),
	RunE: runOverride,
}

func runOverride(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	body := map[string]string{"risk": args[1], "urgency": args[2]}
	var t task.Task
	if err := client.post("/api/tasks/"+args[0]+"/override", body, &t); err != nil {
		return err
	}

	fmt.Printf("Task %s reclassified to %s/%s (status %s)\n", t.ID, t.Risk, t.Urgency, t.Status)
	return nil
}
