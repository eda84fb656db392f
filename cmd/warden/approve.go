package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentinelops/warden/internal/approval"
)

var resolveResponder string

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveApproval(args[0], true)
	},
}

var denyCmd = &cobra.Command{
	Use:   "deny <request-id>",
	Short: "Deny a pending request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveApproval(args[0], false)
	},
}

func init() {
	approveCmd.Flags().StringVar(&resolveResponder, "as", "cli", "Name recorded as the responder")
	denyCmd.Flags().StringVar(&resolveResponder, "as", "cli", "Name recorded as the responder")
}

func resolveApproval(requestID string, approved bool) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	body := map[string]any{"approved": approved, "responder": resolveResponder}
	var resolved approval.Request
	if err := client.post("/api/approvals/"+requestID+"/resolve", body, &resolved); err != nil {
		return err
	}

	fmt.Printf("Request %s: %s (task %s)\n", resolved.ID, resolved.Outcome, resolved.TaskID)
	return nil
}
