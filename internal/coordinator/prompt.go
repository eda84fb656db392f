package coordinator

import (
	"context"

	"github.com/sentinelops/warden/internal/approval"
	"github.com/sentinelops/warden/internal/notify"
)

// PromptAdapter lets the approval workflow deliver prompts through a
// notification channel.
type PromptAdapter struct {
	Notifier notify.Notifier
}

// SendApprovalPrompt forwards the request to the notification channel.
func (a PromptAdapter) SendApprovalPrompt(ctx context.Context, req *approval.Request) (string, error) {
	return a.Notifier.SendApprovalPrompt(ctx, notify.Prompt{
		RequestID: req.ID,
		TaskID:    req.TaskID,
		Action:    req.Action,
		Deadline:  req.Deadline,
	})
}
