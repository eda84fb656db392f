package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Approval.Deadline != 30*time.Minute {
		t.Errorf("Approval.Deadline = %v, want 30m", cfg.Approval.Deadline)
	}
	if cfg.Approval.TimeoutFallback != "escalate" {
		t.Errorf("Approval.TimeoutFallback = %q, want escalate", cfg.Approval.TimeoutFallback)
	}
	if cfg.Retry.Base != 5*time.Second || cfg.Retry.Cap != 10*time.Minute {
		t.Errorf("retry curve = %v/%v, want 5s/10m", cfg.Retry.Base, cfg.Retry.Cap)
	}
	if cfg.Retry.Jitter != 0.25 {
		t.Errorf("Retry.Jitter = %g, want 0.25", cfg.Retry.Jitter)
	}
	if cfg.Sweep.Interval != 30*time.Second {
		t.Errorf("Sweep.Interval = %v, want 30s", cfg.Sweep.Interval)
	}
	if cfg.Executor.Timeout != 10*time.Minute {
		t.Errorf("Executor.Timeout = %v, want 10m", cfg.Executor.Timeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
workers: 8
server:
  addr: "0.0.0.0:9000"
approval:
  deadline: 1h
  timeout_fallback: deny
notify:
  telegram:
    enabled: true
    token: tok
    chat_id: chat
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Approval.Deadline != time.Hour {
		t.Errorf("Approval.Deadline = %v, want 1h", cfg.Approval.Deadline)
	}
	if cfg.Approval.TimeoutFallback != "deny" {
		t.Errorf("Approval.TimeoutFallback = %q, want deny", cfg.Approval.TimeoutFallback)
	}
	if !cfg.Notify.Telegram.Enabled || cfg.Notify.Telegram.Token != "tok" {
		t.Errorf("telegram config not loaded: %+v", cfg.Notify.Telegram)
	}
	// Unset keys fall back to defaults.
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want default 3", cfg.Retry.MaxRetries)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("WARDEN_WORKERS", "2")
	t.Setenv("WARDEN_APPROVAL_DEADLINE", "15m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want env override 2", cfg.Workers)
	}
	if cfg.Approval.Deadline != 15*time.Minute {
		t.Errorf("Approval.Deadline = %v, want 15m", cfg.Approval.Deadline)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"zero workers", "workers: 0\n"},
		{"negative retries", "retry:\n  max_retries: -1\n"},
		{"bad jitter", "retry:\n  jitter: 2.5\n"},
		{"bad fallback", "approval:\n  timeout_fallback: shrug\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() should reject invalid config")
			}
		})
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail for an explicit missing file")
	}
}
