// Package approval implements the human consent workflow that gates
// autonomous actions. Requests resolve exactly once; prompts are
// delivered at most once per request even across crashes.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelops/warden/internal/store"
)

// ErrAlreadyResolved indicates a second resolution attempt on a request.
// The first outcome stands; the attempt changes nothing.
var ErrAlreadyResolved = store.ErrAlreadyResolved

// ErrNotFound indicates the approval request does not exist.
var ErrNotFound = store.ErrNotFound

// Outcome is the resolution state of an approval request.
type Outcome string

const (
	// OutcomePending means the request awaits a human decision.
	OutcomePending Outcome = "pending"
	// OutcomeApproved means a human authorized the action. Terminal.
	OutcomeApproved Outcome = "approved"
	// OutcomeDenied means a human refused the action. Terminal.
	OutcomeDenied Outcome = "denied"
	// OutcomeTimedOut means the deadline passed unanswered. Terminal.
	OutcomeTimedOut Outcome = "timed_out"
)

// Request is one approval request for a gated task.
type Request struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Action      string    `json:"action"`
	RequestedAt time.Time `json:"requested_at"`
	Deadline    time.Time `json:"deadline"`
	Outcome     Outcome   `json:"outcome"`
	Responder   string    `json:"responder,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at,omitempty"`
	PromptSent  bool      `json:"prompt_sent"`
	MessageID   string    `json:"message_id,omitempty"`
}

// PromptSender delivers an approval prompt to a human and returns the
// channel message ID when the channel has one.
type PromptSender interface {
	SendApprovalPrompt(ctx context.Context, req *Request) (messageID string, err error)
}

// Workflow drives approval requests from creation to resolution.
type Workflow struct {
	mu       sync.Mutex
	db       store.ApprovalStore
	sender   PromptSender
	deadline time.Duration
	clock    func() time.Time
	newID    func() string
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithDeadline sets how long a request stays open before timing out.
func WithDeadline(d time.Duration) Option {
	return func(w *Workflow) { w.deadline = d }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(w *Workflow) { w.clock = clock }
}

// NewWorkflow creates an approval workflow over the given store and
// prompt channel.
func NewWorkflow(db store.ApprovalStore, sender PromptSender, opts ...Option) *Workflow {
	w := &Workflow{
		db:       db,
		sender:   sender,
		deadline: 30 * time.Minute,
		clock:    time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Request opens an approval request for a task and dispatches the
// prompt. The request is durably recorded before the prompt goes out,
// and the prompt-sent marker is persisted after delivery, so a crash at
// any point prompts at most once. Calling Request again while one is
// open returns the existing request instead of opening a second.
func (w *Workflow) Request(ctx context.Context, taskID, action string) (*Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock().UTC()
	row := &store.Approval{
		ID:          w.newID(),
		TaskID:      taskID,
		Action:      action,
		RequestedAt: now,
		Deadline:    now.Add(w.deadline),
		Outcome:     string(OutcomePending),
	}

	err := w.db.CreateApproval(row)
	if errors.Is(err, store.ErrOpenApprovalExists) {
		existing, getErr := w.db.GetOpenApprovalByTask(taskID)
		if getErr != nil {
			return nil, fmt.Errorf("fetch open approval: %w", getErr)
		}
		row = existing
	} else if err != nil {
		return nil, fmt.Errorf("create approval: %w", err)
	}

	req := fromApprovalRow(row)
	if !req.PromptSent {
		w.deliverLocked(ctx, req)
	}
	return req, nil
}

// deliverLocked sends the prompt and persists the delivery marker.
// A delivery failure leaves the marker unset for the redeliver sweep.
func (w *Workflow) deliverLocked(ctx context.Context, req *Request) {
	messageID, err := w.sender.SendApprovalPrompt(ctx, req)
	if err != nil {
		return
	}
	if err := w.db.MarkPromptSent(req.ID, messageID); err != nil {
		return
	}
	req.PromptSent = true
	req.MessageID = messageID
}

// Resolve records a human decision on a pending request. A request that
// already carries an outcome fails with ErrAlreadyResolved.
func (w *Workflow) Resolve(id string, approved bool, responder string) (*Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	outcome := OutcomeDenied
	if approved {
		outcome = OutcomeApproved
	}
	now := w.clock().UTC()
	if err := w.db.ResolveApproval(id, string(outcome), responder, now); err != nil {
		return nil, err
	}
	row, err := w.db.GetApproval(id)
	if err != nil {
		return nil, err
	}
	return fromApprovalRow(row), nil
}

// ResolveByMessage resolves the open request tied to a channel message,
// for reply-driven channels where the responder only has the message ID.
func (w *Workflow) ResolveByMessage(messageID string, approved bool, responder string) (*Request, error) {
	w.mu.Lock()
	open, err := w.db.ListOpenApprovals()
	w.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list open approvals: %w", err)
	}
	for _, row := range open {
		if row.MessageID == messageID {
			return w.Resolve(row.ID, approved, responder)
		}
	}
	return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
}

// Get returns an approval request by ID.
func (w *Workflow) Get(id string) (*Request, error) {
	row, err := w.db.GetApproval(id)
	if err != nil {
		return nil, err
	}
	return fromApprovalRow(row), nil
}

// ListOpen returns every pending request ordered by deadline.
func (w *Workflow) ListOpen() ([]*Request, error) {
	rows, err := w.db.ListOpenApprovals()
	if err != nil {
		return nil, fmt.Errorf("list open approvals: %w", err)
	}
	out := make([]*Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromApprovalRow(row))
	}
	return out, nil
}

// ListByTask returns every request ever opened for a task.
func (w *Workflow) ListByTask(taskID string) ([]*Request, error) {
	rows, err := w.db.ListApprovalsByTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	out := make([]*Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromApprovalRow(row))
	}
	return out, nil
}

// CheckExpired times out every open request whose deadline has passed
// and returns them. A request resolved concurrently is skipped.
func (w *Workflow) CheckExpired() ([]*Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	open, err := w.db.ListOpenApprovals()
	if err != nil {
		return nil, fmt.Errorf("list open approvals: %w", err)
	}

	now := w.clock().UTC()
	var expired []*Request
	for _, row := range open {
		if row.Deadline.After(now) {
			// Ordered by deadline, nothing later is expired either.
			break
		}
		err := w.db.ResolveApproval(row.ID, string(OutcomeTimedOut), "", now)
		if errors.Is(err, store.ErrAlreadyResolved) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("time out approval %s: %w", row.ID, err)
		}
		row.Outcome = string(OutcomeTimedOut)
		row.ResolvedAt = now
		expired = append(expired, fromApprovalRow(row))
	}
	return expired, nil
}

// Redeliver retries prompt delivery for open requests whose prompt never
// went out, typically after a crash or channel outage.
func (w *Workflow) Redeliver(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	open, err := w.db.ListOpenApprovals()
	if err != nil {
		return 0, fmt.Errorf("list open approvals: %w", err)
	}

	sent := 0
	for _, row := range open {
		if row.PromptSent {
			continue
		}
		req := fromApprovalRow(row)
		w.deliverLocked(ctx, req)
		if req.PromptSent {
			sent++
		}
	}
	return sent, nil
}

func fromApprovalRow(row *store.Approval) *Request {
	return &Request{
		ID:          row.ID,
		TaskID:      row.TaskID,
		Action:      row.Action,
		RequestedAt: row.RequestedAt,
		Deadline:    row.Deadline,
		Outcome:     Outcome(row.Outcome),
		Responder:   row.Responder,
		ResolvedAt:  row.ResolvedAt,
		PromptSent:  row.PromptSent,
		MessageID:   row.MessageID,
	}
}
