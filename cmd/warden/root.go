package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Autonomous operations coordinator",
	Long: `Warden watches incoming operational reports, classifies them on a
risk/urgency matrix, and decides what happens next: log it, alert a
human, queue an automated fix, or page for immediate intervention.

Anything that can do harm is gated behind an approval request, and
every decision and state change lands in a durable audit trail.

Run 'warden serve' to start the coordinator daemon, then use the other
commands to submit reports and manage tasks over its API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/warden/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(denyCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
