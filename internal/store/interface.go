package store

import (
	"io"
	"time"
)

// TaskStore is the persistence surface the task manager depends on.
type TaskStore interface {
	CreateTask(t *Task) error
	UpdateTask(t *Task) error
	GetTask(id string) (*Task, error)
	ListTasks(status string) ([]*Task, error)
	ListUnfinishedTasks() ([]*Task, error)
	ListSatisfiedTaskIDs() ([]string, error)
}

// DecisionStore is the persistence surface the audit trail depends on.
type DecisionStore interface {
	AppendDecision(d *Decision) error
	ListDecisionsByTask(taskID string) ([]*Decision, error)
	MaxDecisionSeq(taskID string) (int64, error)
}

// ApprovalStore is the persistence surface the approval workflow depends on.
type ApprovalStore interface {
	CreateApproval(a *Approval) error
	ResolveApproval(id, outcome, responder string, resolvedAt time.Time) error
	MarkPromptSent(id, messageID string) error
	GetApproval(id string) (*Approval, error)
	GetOpenApprovalByTask(taskID string) (*Approval, error)
	ListOpenApprovals() ([]*Approval, error)
	ListApprovalsByTask(taskID string) ([]*Approval, error)
}

// Migrator applies schema migrations.
type Migrator interface {
	Migrate() error
}

// Store is the full persistence surface of the coordinator.
type Store interface {
	TaskStore
	DecisionStore
	ApprovalStore
	Migrator
	io.Closer
}

var _ Store = (*DB)(nil)
