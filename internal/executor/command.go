package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/sentinelops/warden/internal/task"
)

// Command runs a fixed argv for every task of its category. Task fields
// are passed through the environment so the same command serves every
// instance of the category.
type Command struct {
	// Name is the program to run.
	Name string
	// Args is the fixed argument list.
	Args []string
	// Timeout bounds a single attempt. Zero means the caller's context
	// deadline is the only bound.
	Timeout time.Duration
	// Retryable marks attempts as safe to repeat.
	Retryable bool
}

// Idempotent reports whether failed attempts may be retried.
func (c *Command) Idempotent() bool {
	return c.Retryable
}

// Execute runs the command with the task exposed as WARDEN_TASK_*
// environment variables. Combined output is returned for the audit
// trail whether or not the command succeeded.
func (c *Command) Execute(ctx context.Context, t *task.Task) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	// Without a WaitDelay, a killed command whose children still hold the
	// output pipes stalls Run past the deadline.
	cmd.WaitDelay = time.Second
	cmd.Env = append(cmd.Environ(),
		"WARDEN_TASK_ID="+t.ID,
		"WARDEN_TASK_DESCRIPTION="+t.Description,
		"WARDEN_TASK_CATEGORY="+t.Category,
		"WARDEN_TASK_RISK="+string(t.Risk),
		"WARDEN_TASK_URGENCY="+string(t.Urgency),
		"WARDEN_TASK_ATTEMPT="+strconv.Itoa(t.RetryCount),
	)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()
	if ctx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("command %s timed out after %s", c.Name, c.Timeout)
	}
	if err != nil {
		return output, fmt.Errorf("command %s: %w", c.Name, err)
	}
	return output, nil
}
