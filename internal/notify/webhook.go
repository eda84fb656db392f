package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook posts alerts and prompts as JSON to an HTTP endpoint, for
// integrations that bridge into chat or paging systems. The receiver
// resolves prompts through the callback API using the request ID.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier for the given endpoint.
func NewWebhook(url string) *Webhook {
	return &Webhook{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

// NewWebhookClient creates a webhook notifier with a custom HTTP client.
func NewWebhookClient(url string, client *http.Client) *Webhook {
	return &Webhook{url: url, client: client}
}

type webhookPayload struct {
	Kind   string  `json:"kind"`
	Alert  *Alert  `json:"alert,omitempty"`
	Prompt *Prompt `json:"prompt,omitempty"`
}

// SendAlert posts the alert to the endpoint.
func (w *Webhook) SendAlert(ctx context.Context, alert Alert) error {
	return w.post(ctx, webhookPayload{Kind: "alert", Alert: &alert})
}

// SendApprovalPrompt posts the prompt. Webhooks assign no message ID;
// the receiver correlates replies by request ID.
func (w *Webhook) SendApprovalPrompt(ctx context.Context, prompt Prompt) (string, error) {
	return "", w.post(ctx, webhookPayload{Kind: "approval_prompt", Prompt: &prompt})
}

func (w *Webhook) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
