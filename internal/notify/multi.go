package notify

import (
	"context"
	"errors"
)

// Multi fans alerts out to every channel and routes approval prompts to
// the first channel, which is the one whose message IDs the callback
// path understands.
type Multi struct {
	channels []Notifier
}

// NewMulti combines notifiers. At least one channel is required.
func NewMulti(channels ...Notifier) *Multi {
	return &Multi{channels: channels}
}

// SendAlert delivers to every channel and joins any failures. A failure
// on one channel does not stop delivery to the others.
func (m *Multi) SendAlert(ctx context.Context, alert Alert) error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.SendAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendApprovalPrompt delivers the prompt through the primary channel and
// mirrors it as an alert on the rest so operators see it everywhere.
func (m *Multi) SendApprovalPrompt(ctx context.Context, prompt Prompt) (string, error) {
	if len(m.channels) == 0 {
		return "", errors.New("no notification channels configured")
	}

	messageID, err := m.channels[0].SendApprovalPrompt(ctx, prompt)
	if err != nil {
		return "", err
	}
	mirror := Alert{
		TaskID:   prompt.TaskID,
		Title:    "approval requested: " + prompt.Action,
		Severity: SeverityWarning,
	}
	for _, ch := range m.channels[1:] {
		ch.SendAlert(ctx, mirror)
	}
	return messageID, nil
}
