package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Approval is the stored representation of an approval request.
type Approval struct {
	ID          string
	TaskID      string
	Action      string
	RequestedAt time.Time
	Deadline    time.Time
	Outcome     string
	Responder   string
	ResolvedAt  time.Time
	PromptSent  bool
	MessageID   string
}

// CreateApproval inserts a new approval request. A task may have at most
// one open request at a time.
func (db *DB) CreateApproval(a *Approval) error {
	return db.Transaction(func(tx *sql.Tx) error {
		var open int
		row := tx.QueryRow(
			"SELECT COUNT(*) FROM approvals WHERE task_id = ? AND outcome = 'pending'",
			a.TaskID)
		if err := row.Scan(&open); err != nil {
			return fmt.Errorf("check open approvals: %w", err)
		}
		if open > 0 {
			return fmt.Errorf("task %s: %w", a.TaskID, ErrOpenApprovalExists)
		}

		_, err := tx.Exec(`
			INSERT INTO approvals (id, task_id, action, requested_at, deadline,
				outcome, responder, resolved_at, prompt_sent, message_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.TaskID, a.Action, formatTime(a.RequestedAt),
			formatTime(a.Deadline), a.Outcome, a.Responder,
			formatNullableTime(a.ResolvedAt), boolToInt(a.PromptSent), a.MessageID)
		if err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
		return nil
	})
}

// ResolveApproval records the outcome of a pending approval. The update
// is conditional on the row still being pending, so a second resolution
// fails with ErrAlreadyResolved and leaves the first outcome intact.
func (db *DB) ResolveApproval(id, outcome, responder string, resolvedAt time.Time) error {
	result, err := db.Exec(`
		UPDATE approvals SET outcome = ?, responder = ?, resolved_at = ?
		WHERE id = ? AND outcome = 'pending'`,
		outcome, responder, formatTime(resolvedAt), id)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	if n == 0 {
		if _, err := db.GetApproval(id); errors.Is(err, ErrNotFound) {
			return fmt.Errorf("approval %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("approval %s: %w", id, ErrAlreadyResolved)
	}
	return nil
}

// MarkPromptSent records that the notification prompt for an approval
// went out, along with the channel message ID when one exists. Redelivery
// checks this flag so a crash between persist and send cannot double-prompt.
func (db *DB) MarkPromptSent(id, messageID string) error {
	result, err := db.Exec(
		"UPDATE approvals SET prompt_sent = 1, message_id = ? WHERE id = ?",
		messageID, id)
	if err != nil {
		return fmt.Errorf("mark prompt sent: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark prompt sent: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("approval %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetApproval retrieves an approval by ID.
func (db *DB) GetApproval(id string) (*Approval, error) {
	row := db.QueryRow(`
		SELECT id, task_id, action, requested_at, deadline, outcome,
			responder, resolved_at, prompt_sent, message_id
		FROM approvals WHERE id = ?`, id)

	a, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("approval %s: %w", id, ErrNotFound)
	}
	return a, err
}

// GetOpenApprovalByTask returns the pending approval for a task, or
// ErrNotFound when none is open.
func (db *DB) GetOpenApprovalByTask(taskID string) (*Approval, error) {
	row := db.QueryRow(`
		SELECT id, task_id, action, requested_at, deadline, outcome,
			responder, resolved_at, prompt_sent, message_id
		FROM approvals WHERE task_id = ? AND outcome = 'pending'`, taskID)

	a, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return a, err
}

// ListOpenApprovals returns all pending approvals ordered by deadline.
func (db *DB) ListOpenApprovals() ([]*Approval, error) {
	rows, err := db.Query(`
		SELECT id, task_id, action, requested_at, deadline, outcome,
			responder, resolved_at, prompt_sent, message_id
		FROM approvals WHERE outcome = 'pending' ORDER BY deadline`)
	if err != nil {
		return nil, fmt.Errorf("list open approvals: %w", err)
	}
	defer rows.Close()

	var out []*Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListApprovalsByTask returns every approval ever opened for a task in
// request order.
func (db *DB) ListApprovalsByTask(taskID string) ([]*Approval, error) {
	rows, err := db.Query(`
		SELECT id, task_id, action, requested_at, deadline, outcome,
			responder, resolved_at, prompt_sent, message_id
		FROM approvals WHERE task_id = ? ORDER BY requested_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []*Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanApproval(row rowScanner) (*Approval, error) {
	var a Approval
	var requestedAt, deadline string
	var responder, messageID sql.NullString
	var resolvedAt sql.NullString
	var promptSent int

	err := row.Scan(&a.ID, &a.TaskID, &a.Action, &requestedAt, &deadline,
		&a.Outcome, &responder, &resolvedAt, &promptSent, &messageID)
	if err != nil {
		return nil, err
	}

	if a.RequestedAt, err = parseTime(requestedAt); err != nil {
		return nil, fmt.Errorf("parse requested_at: %w", err)
	}
	if a.Deadline, err = parseTime(deadline); err != nil {
		return nil, fmt.Errorf("parse deadline: %w", err)
	}
	a.ResolvedAt = parseNullableTime(resolvedAt)
	a.Responder = responder.String
	a.MessageID = messageID.String
	a.PromptSent = promptSent != 0
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
