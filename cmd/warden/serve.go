package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sentinelops/warden/internal/approval"
	"github.com/sentinelops/warden/internal/audit"
	"github.com/sentinelops/warden/internal/config"
	"github.com/sentinelops/warden/internal/coordinator"
	"github.com/sentinelops/warden/internal/decision"
	"github.com/sentinelops/warden/internal/executor"
	"github.com/sentinelops/warden/internal/notify"
	"github.com/sentinelops/warden/internal/server"
	"github.com/sentinelops/warden/internal/store"
	"github.com/sentinelops/warden/internal/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator daemon",
	Long: `Start the warden coordinator: open the task database, recover any
work interrupted by the last shutdown, start the worker pool, and
listen for reports on the HTTP API.

The daemon runs until interrupted. SIGINT or SIGTERM drains workers
and shuts the API down gracefully.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	notifier := buildNotifier(cfg)

	policy := decision.NewPolicyStore(decision.Policy{})
	if cfg.Policy.File != "" {
		watcher, err := decision.WatchPolicy(cfg.Policy.File, policy, func(err error) {
			log.Printf("policy reload: %v", err)
		})
		if err != nil {
			// A missing or unreadable policy file must not keep the
			// daemon down; everything gates until it loads.
			log.Printf("policy watch disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	trail := audit.NewTrail(db)
	manager := task.NewManager(db, trail,
		task.WithDefaultMaxRetries(cfg.Retry.MaxRetries),
		task.WithBackoff(task.Backoff{
			Base:   cfg.Retry.Base,
			Cap:    cfg.Retry.Cap,
			Jitter: cfg.Retry.Jitter,
		}),
		task.WithGeneration(uuid.NewString()),
	)
	approvals := approval.NewWorkflow(db,
		coordinator.PromptAdapter{Notifier: notifier},
		approval.WithDeadline(cfg.Approval.Deadline),
	)

	registry := executor.NewRegistry()
	for category, ex := range cfg.Executors {
		timeout := ex.Timeout
		if timeout == 0 {
			timeout = cfg.Executor.Timeout
		}
		registry.Register(category, &executor.Command{
			Name:      ex.Command,
			Args:      ex.Args,
			Timeout:   timeout,
			Retryable: ex.Retryable,
		})
	}

	logger, err := coordinator.NewDebugLogger(cfg.Debug.LogFile)
	if err != nil {
		return err
	}
	defer logger.Close()

	coord, err := coordinator.New(coordinator.RequiredConfig{
		Manager:   manager,
		Approvals: approvals,
		Trail:     trail,
		Notifier:  notifier,
		Registry:  registry,
		Policy:    policy,
	},
		coordinator.WithWorkers(cfg.Workers),
		coordinator.WithSweepInterval(cfg.Sweep.Interval),
		coordinator.WithExecutorTimeout(cfg.Executor.Timeout),
		coordinator.WithTimeoutFallback(cfg.Approval.TimeoutFallback),
		coordinator.WithDebugLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- coord.Run(ctx)
	}()

	log.Printf("warden listening on %s (database %s, %d workers)",
		cfg.Server.Addr, cfg.DatabasePath, cfg.Workers)

	srv := server.New(coord, manager, trail, approvals)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		stop()
		<-errCh
		return err
	}
	return <-errCh
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	channels := []notify.Notifier{}
	if cfg.Notify.Telegram.Enabled {
		channels = append(channels, notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID))
	}
	if cfg.Notify.Webhook.Enabled {
		channels = append(channels, notify.NewWebhook(cfg.Notify.Webhook.URL))
	}
	channels = append(channels, notify.NewConsole())
	if len(channels) == 1 {
		return channels[0]
	}
	return notify.NewMulti(channels...)
}
