// Package config loads warden configuration from file, environment,
// and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	DatabasePath string `mapstructure:"database_path"`
	Workers      int    `mapstructure:"workers"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Approval struct {
		// Deadline is how long an approval request stays open.
		Deadline time.Duration `mapstructure:"deadline"`
		// TimeoutFallback is what happens to the task when the deadline
		// passes unanswered: "escalate" or "deny".
		TimeoutFallback string `mapstructure:"timeout_fallback"`
	} `mapstructure:"approval"`

	Retry struct {
		MaxRetries int           `mapstructure:"max_retries"`
		Base       time.Duration `mapstructure:"base"`
		Cap        time.Duration `mapstructure:"cap"`
		Jitter     float64       `mapstructure:"jitter"`
	} `mapstructure:"retry"`

	Sweep struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"sweep"`

	Executor struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"executor"`

	// Executors maps task categories to the commands that handle them.
	Executors map[string]ExecutorConfig `mapstructure:"executors"`

	Policy struct {
		File string `mapstructure:"file"`
	} `mapstructure:"policy"`

	Notify struct {
		Telegram struct {
			Enabled bool   `mapstructure:"enabled"`
			Token   string `mapstructure:"token"`
			ChatID  string `mapstructure:"chat_id"`
		} `mapstructure:"telegram"`
		Webhook struct {
			Enabled bool   `mapstructure:"enabled"`
			URL     string `mapstructure:"url"`
		} `mapstructure:"webhook"`
	} `mapstructure:"notify"`

	Debug struct {
		LogFile string `mapstructure:"log_file"`
	} `mapstructure:"debug"`
}

// ExecutorConfig describes one command-backed executor.
type ExecutorConfig struct {
	Command string `mapstructure:"command"`
	// Args are passed before the environment-carried task fields.
	Args []string `mapstructure:"args"`
	// Timeout bounds one execution; zero falls back to executor.timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// Retryable marks the command as safe to run more than once.
	Retryable bool `mapstructure:"retryable"`
}

// Load reads configuration from the given file, or from the default
// search paths when path is empty. Environment variables with the
// WARDEN_ prefix override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file found; defaults and env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("retry.jitter must be in [0, 1], got %g", c.Retry.Jitter)
	}
	for category, ex := range c.Executors {
		if ex.Command == "" {
			return fmt.Errorf("executors.%s: command is required", category)
		}
	}
	switch c.Approval.TimeoutFallback {
	case "escalate", "deny":
	default:
		return fmt.Errorf("approval.timeout_fallback must be escalate or deny, got %q", c.Approval.TimeoutFallback)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_path", defaultDataPath("warden.db"))
	v.SetDefault("workers", 4)
	v.SetDefault("server.addr", "127.0.0.1:8320")
	v.SetDefault("approval.deadline", "30m")
	v.SetDefault("approval.timeout_fallback", "escalate")
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base", "5s")
	v.SetDefault("retry.cap", "10m")
	v.SetDefault("retry.jitter", 0.25)
	v.SetDefault("sweep.interval", "30s")
	v.SetDefault("executor.timeout", "10m")
	v.SetDefault("policy.file", filepath.Join(configDir(), "policy.yaml"))
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("debug.log_file", "")
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "warden")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "warden")
}

func defaultDataPath(name string) string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "warden", name)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".local", "share", "warden", name)
}
