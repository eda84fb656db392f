package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConsoleAlert(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)

	err := c.SendAlert(context.Background(), Alert{
		TaskID:   "t1",
		Title:    "disk filling up",
		Body:     "92% used on /var",
		Severity: SeverityWarning,
	})
	if err != nil {
		t.Fatalf("SendAlert() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"warning", "t1", "disk filling up", "92% used on /var"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsolePrompt(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)

	messageID, err := c.SendApprovalPrompt(context.Background(), Prompt{
		RequestID: "req-1",
		TaskID:    "t1",
		Action:    "restart database",
		Deadline:  time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SendApprovalPrompt() error = %v", err)
	}
	if messageID != "" {
		t.Errorf("messageID = %q, console assigns none", messageID)
	}

	out := buf.String()
	for _, want := range []string{"approval needed", "restart database", "warden approve req-1", "warden deny req-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTelegramPromptReturnsMessageID(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 4242},
		})
	}))
	defer srv.Close()

	tg := NewTelegramClient("bot-token", "chat-7", srv.URL, srv.Client())
	messageID, err := tg.SendApprovalPrompt(context.Background(), Prompt{
		RequestID: "req-1",
		TaskID:    "t1",
		Action:    "restart database",
		Deadline:  time.Now().Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("SendApprovalPrompt() error = %v", err)
	}
	if messageID != "4242" {
		t.Errorf("messageID = %q, want 4242", messageID)
	}
	if gotPath != "/botbot-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "chat-7" {
		t.Errorf("chat_id = %q, want chat-7", gotBody["chat_id"])
	}
	if !strings.Contains(gotBody["text"], "req-1") {
		t.Errorf("prompt text missing request id: %q", gotBody["text"])
	}
}

func TestTelegramAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	tg := NewTelegramClient("bot-token", "chat-7", srv.URL, srv.Client())
	err := tg.SendAlert(context.Background(), Alert{TaskID: "t1", Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("SendAlert() error = %v, want chat not found", err)
	}
}

func TestWebhookDeliversJSON(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	wh := NewWebhookClient(srv.URL, srv.Client())
	err := wh.SendAlert(context.Background(), Alert{
		TaskID:   "t1",
		Title:    "escalated",
		Severity: SeverityCritical,
	})
	if err != nil {
		t.Fatalf("SendAlert() error = %v", err)
	}
	if got.Kind != "alert" || got.Alert == nil || got.Alert.TaskID != "t1" {
		t.Errorf("payload = %+v", got)
	}
	if got.Alert.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want critical", got.Alert.Severity)
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhookClient(srv.URL, srv.Client())
	if err := wh.SendAlert(context.Background(), Alert{TaskID: "t1"}); err == nil {
		t.Error("SendAlert() should fail on 502")
	}
}

// recordingNotifier counts deliveries for fan-out tests.
type recordingNotifier struct {
	mu      sync.Mutex
	alerts  []Alert
	prompts []Prompt
	failing bool
}

func (r *recordingNotifier) SendAlert(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return errors.New("channel down")
	}
	r.alerts = append(r.alerts, a)
	return nil
}

func (r *recordingNotifier) SendApprovalPrompt(_ context.Context, p Prompt) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return "", errors.New("channel down")
	}
	r.prompts = append(r.prompts, p)
	return "msg-1", nil
}

func TestMultiFansOutAlerts(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{failing: true}
	m := NewMulti(a, b)

	err := m.SendAlert(context.Background(), Alert{TaskID: "t1", Title: "x"})
	if err == nil {
		t.Error("SendAlert() should surface the failing channel")
	}
	if len(a.alerts) != 1 {
		t.Errorf("healthy channel got %d alerts, want 1", len(a.alerts))
	}
}

func TestMultiPromptGoesToPrimary(t *testing.T) {
	primary, secondary := &recordingNotifier{}, &recordingNotifier{}
	m := NewMulti(primary, secondary)

	messageID, err := m.SendApprovalPrompt(context.Background(), Prompt{RequestID: "req-1", TaskID: "t1", Action: "x"})
	if err != nil {
		t.Fatalf("SendApprovalPrompt() error = %v", err)
	}
	if messageID != "msg-1" {
		t.Errorf("messageID = %q, want primary's msg-1", messageID)
	}
	if len(primary.prompts) != 1 {
		t.Errorf("primary got %d prompts, want 1", len(primary.prompts))
	}
	if len(secondary.prompts) != 0 {
		t.Errorf("secondary got %d prompts, want 0", len(secondary.prompts))
	}
	if len(secondary.alerts) != 1 {
		t.Errorf("secondary got %d mirror alerts, want 1", len(secondary.alerts))
	}
}
