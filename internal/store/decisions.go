package store

import (
	"fmt"
	"strings"
	"time"
)

// Decision is one append-only audit record. Records for a task carry a
// monotonically increasing seq; the (task_id, seq) pair is unique so a
// replayed append cannot silently overwrite history.
type Decision struct {
	ID          string
	TaskID      string
	Seq         int64
	Kind        string
	ActionClass string
	Disposition string
	Detail      string
	CreatedAt   time.Time
}

// AppendDecision inserts an audit record. There is no update or delete
// path for decisions.
func (db *DB) AppendDecision(d *Decision) error {
	_, err := db.Exec(`
		INSERT INTO decisions (id, task_id, seq, kind, action_class,
			disposition, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TaskID, d.Seq, d.Kind, d.ActionClass, d.Disposition,
		d.Detail, formatTime(d.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("decision %s/%d: %w", d.TaskID, d.Seq, ErrDuplicateID)
		}
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// ListDecisionsByTask returns all audit records for a task in seq order.
func (db *DB) ListDecisionsByTask(taskID string) ([]*Decision, error) {
	rows, err := db.Query(`
		SELECT id, task_id, seq, kind, action_class, disposition, detail, created_at
		FROM decisions WHERE task_id = ? ORDER BY seq`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		var d Decision
		var createdAt string
		if err := rows.Scan(&d.ID, &d.TaskID, &d.Seq, &d.Kind, &d.ActionClass,
			&d.Disposition, &d.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// MaxDecisionSeq returns the highest seq recorded for a task, or 0 when
// the task has no records yet.
func (db *DB) MaxDecisionSeq(taskID string) (int64, error) {
	var seq int64
	row := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM decisions WHERE task_id = ?", taskID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("max decision seq: %w", err)
	}
	return seq, nil
}
