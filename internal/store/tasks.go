package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Task is the stored representation of a managed task.
type Task struct {
	ID            string
	Description   string
	Origin        string
	Category      string
	Risk          string
	Urgency       string
	Status        string
	DependsOn     []string
	RetryCount    int
	MaxRetries    int
	NotBefore     time.Time
	ClaimedBy     string
	ClaimDeadline time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastError     string
}

// CreateTask inserts a new task row. Every dependency must already be
// stored, so a new row can never close a dependency cycle.
func (db *DB) CreateTask(t *Task) error {
	depsJSON, err := marshalDeps(t.DependsOn)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *sql.Tx) error {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return fmt.Errorf("task %s: %w: depends on itself", t.ID, ErrUnknownDependency)
			}
			var exists int
			row := tx.QueryRow("SELECT COUNT(*) FROM tasks WHERE id = ?", dep)
			if err := row.Scan(&exists); err != nil {
				return fmt.Errorf("check dependency %s: %w", dep, err)
			}
			if exists == 0 {
				return fmt.Errorf("task %s: %w: %s", t.ID, ErrUnknownDependency, dep)
			}
		}

		_, err := tx.Exec(`
			INSERT INTO tasks (id, description, origin, category, risk, urgency,
				status, depends_on, retry_count, max_retries, not_before,
				claimed_by, claim_deadline, created_at, updated_at, last_error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Description, t.Origin, t.Category, t.Risk, t.Urgency,
			t.Status, depsJSON, t.RetryCount, t.MaxRetries,
			formatNullableTime(t.NotBefore), t.ClaimedBy,
			formatNullableTime(t.ClaimDeadline),
			formatTime(t.CreatedAt), formatTime(t.UpdatedAt), t.LastError)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint") {
				return fmt.Errorf("task %s: %w", t.ID, ErrDuplicateID)
			}
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
}

// UpdateTask rewrites the mutable columns of a task row. The dependency
// list is immutable after creation and is not touched here.
func (db *DB) UpdateTask(t *Task) error {
	result, err := db.Exec(`
		UPDATE tasks SET description = ?, risk = ?, urgency = ?, status = ?,
			retry_count = ?, not_before = ?, claimed_by = ?, claim_deadline = ?,
			updated_at = ?, last_error = ?
		WHERE id = ?`,
		t.Description, t.Risk, t.Urgency, t.Status,
		t.RetryCount, formatNullableTime(t.NotBefore), t.ClaimedBy,
		formatNullableTime(t.ClaimDeadline),
		formatTime(t.UpdatedAt), t.LastError, t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (db *DB) GetTask(id string) (*Task, error) {
	row := db.QueryRow(`
		SELECT id, description, origin, category, risk, urgency, status,
			depends_on, retry_count, max_retries, not_before, claimed_by,
			claim_deadline, created_at, updated_at, last_error
		FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTasks returns tasks filtered by status, or all tasks when status
// is empty, ordered by creation time.
func (db *DB) ListTasks(status string) ([]*Task, error) {
	query := `
		SELECT id, description, origin, category, risk, urgency, status,
			depends_on, retry_count, max_retries, not_before, claimed_by,
			claim_deadline, created_at, updated_at, last_error
		FROM tasks`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListUnfinishedTasks returns every task whose status is not terminal.
// Used on startup to rebuild in-memory state.
func (db *DB) ListUnfinishedTasks() ([]*Task, error) {
	rows, err := db.Query(`
		SELECT id, description, origin, category, risk, urgency, status,
			depends_on, retry_count, max_retries, not_before, claimed_by,
			claim_deadline, created_at, updated_at, last_error
		FROM tasks
		WHERE status NOT IN ('succeeded', 'rejected', 'escalated', 'cancelled')
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list unfinished tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListSatisfiedTaskIDs returns the IDs of all succeeded tasks. Used on
// startup to restore dependency satisfaction.
func (db *DB) ListSatisfiedTaskIDs() ([]string, error) {
	rows, err := db.Query("SELECT id FROM tasks WHERE status = 'succeeded'")
	if err != nil {
		return nil, fmt.Errorf("list satisfied tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var depsJSON, claimedBy, lastError sql.NullString
	var notBefore, claimDeadline sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.Description, &t.Origin, &t.Category, &t.Risk,
		&t.Urgency, &t.Status, &depsJSON, &t.RetryCount, &t.MaxRetries,
		&notBefore, &claimedBy, &claimDeadline, &createdAt, &updatedAt,
		&lastError)
	if err != nil {
		return nil, err
	}

	t.DependsOn, err = unmarshalDeps(depsJSON)
	if err != nil {
		return nil, err
	}
	t.NotBefore = parseNullableTime(notBefore)
	t.ClaimDeadline = parseNullableTime(claimDeadline)
	t.ClaimedBy = claimedBy.String
	t.LastError = lastError.String
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func marshalDeps(deps []string) (string, error) {
	if len(deps) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(deps)
	if err != nil {
		return "", fmt.Errorf("marshal dependencies: %w", err)
	}
	return string(b), nil
}

func unmarshalDeps(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" || s.String == "[]" {
		return nil, nil
	}
	var deps []string
	if err := json.Unmarshal([]byte(s.String), &deps); err != nil {
		return nil, fmt.Errorf("unmarshal dependencies: %w", err)
	}
	return deps, nil
}
