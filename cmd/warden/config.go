package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentinelops/warden/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration the daemon would run with: defaults,
overlaid with the config file, overlaid with WARDEN_* environment
variables.

Configuration is read from ~/.config/warden/config.yaml unless
--config points elsewhere.`,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fmt.Printf("database_path: %s\n", cfg.DatabasePath)
	fmt.Printf("workers: %d\n", cfg.Workers)
	fmt.Printf("server.addr: %s\n", cfg.Server.Addr)
	fmt.Printf("approval.deadline: %s\n", cfg.Approval.Deadline)
	fmt.Printf("approval.timeout_fallback: %s\n", cfg.Approval.TimeoutFallback)
	fmt.Printf("retry.max_retries: %d\n", cfg.Retry.MaxRetries)
	fmt.Printf("retry.base: %s\n", cfg.Retry.Base)
	fmt.Printf("retry.cap: %s\n", cfg.Retry.Cap)
	fmt.Printf("retry.jitter: %g\n", cfg.Retry.Jitter)
	fmt.Printf("sweep.interval: %s\n", cfg.Sweep.Interval)
	fmt.Printf("executor.timeout: %s\n", cfg.Executor.Timeout)
	fmt.Printf("policy.file: %s\n", cfg.Policy.File)
	fmt.Printf("notify.telegram.enabled: %t\n", cfg.Notify.Telegram.Enabled)
	if cfg.Notify.Telegram.Enabled {
		token := "(not set)"
		if cfg.Notify.Telegram.Token != "" {
			token = "****"
		}
		fmt.Printf("notify.telegram.token: %s\n", token)
		fmt.Printf("notify.telegram.chat_id: %s\n", cfg.Notify.Telegram.ChatID)
	}
	fmt.Printf("notify.webhook.enabled: %t\n", cfg.Notify.Webhook.Enabled)
	if cfg.Notify.Webhook.Enabled {
		fmt.Printf("notify.webhook.url: %s\n", cfg.Notify.Webhook.URL)
	}
	if cfg.Debug.LogFile != "" {
		fmt.Printf("debug.log_file: %s\n", cfg.Debug.LogFile)
	}
	for category, ex := range cfg.Executors {
		fmt.Printf("executors.%s: %s (retryable=%t)\n", category, ex.Command, ex.Retryable)
	}
	return nil
}
