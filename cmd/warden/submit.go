package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentinelops/warden/internal/coordinator"
	"github.com/sentinelops/warden/internal/decision"
)

var (
	submitCategory   string
	submitRisk       string
	submitUrgency    string
	submitOrigin     string
	submitDependsOn  []string
	submitMaxRetries int
)

var submitCmd = &cobra.Command{
	Use:   "submit <description>",
	Short: "Submit a report for classification",
	Long: `Submit an operational report to the coordinator. The report is
classified on the risk/urgency matrix and routed accordingly.

Risk and urgency may be given explicitly with --risk and --urgency;
when omitted they are inferred from the description.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitCategory, "category", "", "Executor category for the task")
	submitCmd.Flags().StringVar(&submitRisk, "risk", "", "Risk level: low, medium, high (inferred when omitted)")
	submitCmd.Flags().StringVar(&submitUrgency, "urgency", "", "Urgency level: low, medium, high (inferred when omitted)")
	submitCmd.Flags().StringVar(&submitOrigin, "origin", "cli", "Who or what raised the report")
	submitCmd.Flags().StringSliceVar(&submitDependsOn, "depends-on", nil, "Task IDs that must succeed first")
	submitCmd.Flags().IntVar(&submitMaxRetries, "max-retries", -1, "Retry budget (-1 uses the daemon default)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	report := coordinator.Report{
		Description: strings.Join(args, " "),
		Origin:      submitOrigin,
		Category:    submitCategory,
		Risk:        decision.RiskLevel(submitRisk),
		Urgency:     decision.UrgencyLevel(submitUrgency),
		DependsOn:   submitDependsOn,
	}
	if submitMaxRetries >= 0 {
		report.MaxRetries = &submitMaxRetries
	}

	var outcome coordinator.Outcome
	if err := client.post("/api/tasks", report, &outcome); err != nil {
		return err
	}

	fmt.Printf("Task %s\n", outcome.Task.ID)
	fmt.Printf("  Classified: %s/%s -> %s\n", outcome.Task.Risk, outcome.Task.Urgency, outcome.ActionClass)
	fmt.Printf("  Status: %s\n", outcome.Task.Status)
	if outcome.Gated {
		fmt.Println("  Awaiting approval. Resolve with 'warden approve' or 'warden deny'.")
	}
	return nil
}
