package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentinelops/warden/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit <task-id>",
	Short: "Show the audit trail for a task",
	Long: `Print every audit record for a task in sequence order: the
classification decision, each state transition, execution results, and
any escalations or overrides.`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	var records []audit.Record
	if err := client.get("/api/tasks/"+args[0]+"/audit", &records); err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No audit records.")
		return nil
	}

	for _, r := range records {
		line := fmt.Sprintf("%3d  %s  %-11s", r.Seq, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Kind)
		if r.ActionClass != "" {
			line += "  " + r.ActionClass
		}
		if r.Disposition != "" {
			line += "  [" + r.Disposition + "]"
		}
		if r.Detail != "" {
			line += "  " + r.Detail
		}
		fmt.Println(line)
	}
	return nil
}
