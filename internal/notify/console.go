package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	infoColor     = color.New(color.FgCyan)
	warningColor  = color.New(color.FgYellow)
	criticalColor = color.New(color.FgRed, color.Bold)
	promptColor   = color.New(color.FgMagenta, color.Bold)
)

// Console writes alerts and prompts to a terminal stream. It is the
// fallback channel and always available.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console notifier writing to stderr.
func NewConsole() *Console {
	return &Console{out: os.Stderr}
}

// NewConsoleWriter creates a console notifier writing to the given stream.
func NewConsoleWriter(out io.Writer) *Console {
	return &Console{out: out}
}

// SendAlert prints the alert with severity coloring.
func (c *Console) SendAlert(_ context.Context, alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	label := infoColor
	switch alert.Severity {
	case SeverityWarning:
		label = warningColor
	case SeverityCritical:
		label = criticalColor
	}

	fmt.Fprintf(c.out, "%s [task %s] %s\n",
		label.Sprintf("[%s]", alert.Severity), alert.TaskID, alert.Title)
	if alert.Body != "" {
		fmt.Fprintf(c.out, "  %s\n", alert.Body)
	}
	return nil
}

// SendApprovalPrompt prints the prompt with the commands that resolve it.
// The console assigns no message ID.
func (c *Console) SendApprovalPrompt(_ context.Context, prompt Prompt) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "%s [task %s] %s\n",
		promptColor.Sprint("[approval needed]"), prompt.TaskID, prompt.Action)
	fmt.Fprintf(c.out, "  respond by %s:  warden approve %s  |  warden deny %s\n",
		prompt.Deadline.Format(time.RFC3339), prompt.RequestID, prompt.RequestID)
	return "", nil
}
