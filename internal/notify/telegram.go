package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Telegram delivers alerts and prompts through the Telegram Bot API.
// Prompt messages carry the request ID so chat replies can resolve them.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewTelegramClient creates a Telegram notifier with a custom API base
// URL and HTTP client, for tests and proxied deployments.
func NewTelegramClient(token, chatID, baseURL string, client *http.Client) *Telegram {
	return &Telegram{token: token, chatID: chatID, baseURL: baseURL, client: client}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendAlert posts the alert to the configured chat.
func (t *Telegram) SendAlert(ctx context.Context, alert Alert) error {
	text := fmt.Sprintf("[%s] task %s\n%s", alert.Severity, alert.TaskID, alert.Title)
	if alert.Body != "" {
		text += "\n" + alert.Body
	}
	_, err := t.sendMessage(ctx, text)
	return err
}

// SendApprovalPrompt posts the prompt and returns the Telegram message ID.
func (t *Telegram) SendApprovalPrompt(ctx context.Context, prompt Prompt) (string, error) {
	text := fmt.Sprintf("Approval needed for task %s\n%s\nDeadline: %s\nReply /approve %s or /deny %s",
		prompt.TaskID, prompt.Action, prompt.Deadline.Format(time.RFC3339),
		prompt.RequestID, prompt.RequestID)
	resp, err := t.sendMessage(ctx, text)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.Result.MessageID, 10), nil
}

func (t *Telegram) sendMessage(ctx context.Context, text string) (*telegramResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send telegram message: %w", err)
	}
	defer httpResp.Body.Close()

	var resp telegramResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode telegram response: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram api: %s", resp.Description)
	}
	return &resp, nil
}
