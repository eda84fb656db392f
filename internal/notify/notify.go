// Package notify delivers operator-facing alerts and approval prompts
// over the configured channels.
package notify

import (
	"context"
	"time"
)

// Severity grades an alert for channel formatting and filtering.
type Severity int

const (
	// SeverityInfo is routine visibility.
	SeverityInfo Severity = iota
	// SeverityWarning needs operator attention soon.
	SeverityWarning
	// SeverityCritical needs operator attention now.
	SeverityCritical
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Alert is an operator notification about a task.
type Alert struct {
	TaskID   string   `json:"task_id"`
	Title    string   `json:"title"`
	Body     string   `json:"body,omitempty"`
	Severity Severity `json:"severity"`
}

// Prompt asks a human to approve or deny a gated action.
type Prompt struct {
	RequestID string    `json:"request_id"`
	TaskID    string    `json:"task_id"`
	Action    string    `json:"action"`
	Deadline  time.Time `json:"deadline"`
}

// Notifier is a delivery channel for alerts and approval prompts.
// SendApprovalPrompt returns the channel message ID when the channel
// assigns one, so replies can be correlated back to the request.
type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) error
	SendApprovalPrompt(ctx context.Context, prompt Prompt) (messageID string, err error)
}
