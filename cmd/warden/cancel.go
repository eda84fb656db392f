package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelReason string

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task and everything that depends on it",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "cancelled via cli", "Reason recorded in the audit trail")
}

func runCancel(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var result struct {
		Cancelled []string `json:"cancelled"`
	}
	body := map[string]string{"reason": cancelReason}
	if err := client.post("/api/tasks/"+args[0]+"/cancel", body, &result); err != nil {
		return err
	}

	fmt.Printf("Cancelled %d task(s):\n", len(result.Cancelled))
	for _, id := range result.Cancelled {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
