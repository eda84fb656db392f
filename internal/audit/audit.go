// Package audit maintains the append-only decision trail. Every
// classification, state transition, completion, and escalation is
// recorded with a per-task monotonic sequence number before the
// triggering operation is allowed to proceed.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelops/warden/internal/store"
)

// Record kinds.
const (
	KindDecision   = "decision"
	KindTransition = "transition"
	KindCompletion = "completion"
	KindEscalation = "escalation"
	KindOverride   = "override"
)

// Record is one immutable entry in a task's audit trail.
type Record struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Seq         int64     `json:"seq"`
	Kind        string    `json:"kind"`
	ActionClass string    `json:"action_class,omitempty"`
	Disposition string    `json:"disposition,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Trail appends audit records through a DecisionStore. Sequence numbers
// are assigned per task under a single lock so concurrent appends for
// the same task never collide.
type Trail struct {
	mu    sync.Mutex
	db    store.DecisionStore
	seqs  map[string]int64
	clock func() time.Time
}

// NewTrail creates an audit trail backed by the given store.
func NewTrail(db store.DecisionStore) *Trail {
	return &Trail{
		db:    db,
		seqs:  make(map[string]int64),
		clock: time.Now,
	}
}

// Append records an entry for a task. The entry is durably written
// before Append returns; a write failure leaves the in-memory sequence
// untouched so the number is reused on retry.
func (tr *Trail) Append(taskID, kind, actionClass, disposition, detail string) (*Record, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	seq, err := tr.nextSeqLocked(taskID)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		Seq:         seq,
		Kind:        kind,
		ActionClass: actionClass,
		Disposition: disposition,
		Detail:      detail,
		CreatedAt:   tr.clock().UTC(),
	}

	err = tr.db.AppendDecision(&store.Decision{
		ID:          rec.ID,
		TaskID:      rec.TaskID,
		Seq:         rec.Seq,
		Kind:        rec.Kind,
		ActionClass: rec.ActionClass,
		Disposition: rec.Disposition,
		Detail:      rec.Detail,
		CreatedAt:   rec.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("audit append for task %s: %w", taskID, err)
	}

	tr.seqs[taskID] = seq
	return rec, nil
}

// RecordDecision appends a classification entry.
func (tr *Trail) RecordDecision(taskID, actionClass, disposition, detail string) error {
	_, err := tr.Append(taskID, KindDecision, actionClass, disposition, detail)
	return err
}

// RecordTransition appends a state transition entry.
func (tr *Trail) RecordTransition(taskID, from, to, detail string) error {
	d := from + " -> " + to
	if detail != "" {
		d += ": " + detail
	}
	_, err := tr.Append(taskID, KindTransition, "", "", d)
	return err
}

// RecordCompletion appends an execution outcome entry.
func (tr *Trail) RecordCompletion(taskID, disposition, detail string) error {
	_, err := tr.Append(taskID, KindCompletion, "", disposition, detail)
	return err
}

// RecordEscalation appends an escalation entry.
func (tr *Trail) RecordEscalation(taskID, reason string) error {
	_, err := tr.Append(taskID, KindEscalation, "", "escalated", reason)
	return err
}

// List returns every record for a task in sequence order.
func (tr *Trail) List(taskID string) ([]*Record, error) {
	rows, err := tr.db.ListDecisionsByTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("audit list for task %s: %w", taskID, err)
	}
	out := make([]*Record, 0, len(rows))
	for _, d := range rows {
		out = append(out, &Record{
			ID:          d.ID,
			TaskID:      d.TaskID,
			Seq:         d.Seq,
			Kind:        d.Kind,
			ActionClass: d.ActionClass,
			Disposition: d.Disposition,
			Detail:      d.Detail,
			CreatedAt:   d.CreatedAt,
		})
	}
	return out, nil
}

// nextSeqLocked computes the next sequence number for a task, consulting
// the store the first time a task is seen so restarts continue the
// existing numbering.
func (tr *Trail) nextSeqLocked(taskID string) (int64, error) {
	if seq, ok := tr.seqs[taskID]; ok {
		return seq + 1, nil
	}
	seq, err := tr.db.MaxDecisionSeq(taskID)
	if err != nil {
		return 0, fmt.Errorf("audit seq for task %s: %w", taskID, err)
	}
	return seq + 1, nil
}
