// Package task owns the task lifecycle: submission, priority ordering,
// dependency resolution, exclusive claims, and retry accounting.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/sentinelops/warden/internal/decision"
)

// ErrValidation indicates a malformed task spec that never entered the queue.
var ErrValidation = errors.New("validation error")

// ErrInvalidTransition indicates a status change outside the lifecycle edges.
// The operation is a no-op on state.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrNotFound indicates the task does not exist.
var ErrNotFound = errors.New("task not found")

// Status represents the current lifecycle state of a task.
type Status string

const (
	// StatusPending indicates the task is waiting on dependencies or backoff.
	StatusPending Status = "pending"
	// StatusAwaitingApproval indicates dispatch is gated on a human decision.
	StatusAwaitingApproval Status = "awaiting_approval"
	// StatusApproved indicates a human approved dispatch.
	StatusApproved Status = "approved"
	// StatusRejected indicates a human denied dispatch. Terminal.
	StatusRejected Status = "rejected"
	// StatusReady indicates all gates passed and the task is queued for a worker.
	StatusReady Status = "ready"
	// StatusRunning indicates a worker holds an exclusive claim on the task.
	StatusRunning Status = "running"
	// StatusSucceeded indicates the executor completed the task. Terminal.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the last execution attempt failed.
	StatusFailed Status = "failed"
	// StatusEscalated indicates automated handling is exhausted. Terminal.
	StatusEscalated Status = "escalated"
	// StatusCancelled indicates the task was cancelled. Terminal.
	StatusCancelled Status = "cancelled"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAwaitingApproval, StatusApproved, StatusRejected,
		StatusReady, StatusRunning, StatusSucceeded, StatusFailed,
		StatusEscalated, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusRejected, StatusEscalated, StatusCancelled:
		return true
	default:
		return false
	}
}

// transitions is the full set of legal lifecycle edges.
// Pending -> Succeeded is the log-only closure: the task is recorded and
// immediately finalized without ever reaching a worker.
var transitions = map[Status][]Status{
	StatusPending:          {StatusReady, StatusAwaitingApproval, StatusSucceeded, StatusCancelled},
	StatusAwaitingApproval: {StatusApproved, StatusRejected, StatusEscalated, StatusCancelled},
	StatusApproved:         {StatusReady, StatusCancelled},
	StatusReady:            {StatusRunning, StatusCancelled},
	StatusRunning:          {StatusSucceeded, StatusFailed, StatusCancelled},
	StatusFailed:           {StatusPending, StatusEscalated, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Task is a unit of work routed through the coordinator.
// Tasks are owned by the Manager and mutated only through its operations.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Description is the human-readable summary of the work.
	Description string `json:"description"`
	// Origin names the collaborator that raised the task (monitor, webhook, user).
	Origin string `json:"origin"`
	// Category selects the executor capability that performs the work.
	Category string `json:"category"`
	// Risk is the assessed risk level.
	Risk decision.RiskLevel `json:"risk"`
	// Urgency is the assessed urgency level.
	Urgency decision.UrgencyLevel `json:"urgency"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// DependsOn lists task IDs that must succeed before this task may run.
	DependsOn []string `json:"depends_on,omitempty"`
	// RetryCount is the number of failed execution attempts so far.
	RetryCount int `json:"retry_count"`
	// MaxRetries is the retry budget before escalation.
	MaxRetries int `json:"max_retries"`
	// NotBefore gates scheduling while a retry backoff delay is pending.
	NotBefore time.Time `json:"not_before,omitempty"`
	// ClaimedBy is the fencing token of the worker holding the Running claim.
	ClaimedBy string `json:"claimed_by,omitempty"`
	// ClaimDeadline is when a Running claim is considered stalled.
	ClaimDeadline time.Time `json:"claim_deadline,omitempty"`
	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task last changed.
	UpdatedAt time.Time `json:"updated_at"`
	// LastError holds the most recent failure reason.
	LastError string `json:"last_error,omitempty"`
}

// ActionClass recomputes the task's action class from its risk and urgency.
// The class is derived state and is never stored independently.
func (t *Task) ActionClass() decision.ActionClass {
	return decision.Classify(t.Risk, t.Urgency)
}

// PriorityScore derives the scheduling score at the given instant.
// Severity dominates, then urgency, then age; for a fixed (risk, urgency)
// the score never decreases as the task ages, so old tasks cannot starve.
func (t *Task) PriorityScore(now time.Time) float64 {
	age := now.Sub(t.CreatedAt).Seconds()
	if age < 0 {
		age = 0
	}
	return float64(t.ActionClass().Severity())*1e6 +
		float64(urgencyWeight(t.Urgency))*1e4 +
		age
}

func urgencyWeight(u decision.UrgencyLevel) int {
	switch u {
	case decision.UrgencyHigh:
		return 3
	case decision.UrgencyMedium:
		return 2
	case decision.UrgencyLow:
		return 1
	default:
		return 0
	}
}

// Spec is the submission payload for a new task.
type Spec struct {
	Description string                `json:"description"`
	Origin      string                `json:"origin"`
	Category    string                `json:"category"`
	Risk        decision.RiskLevel    `json:"risk"`
	Urgency     decision.UrgencyLevel `json:"urgency"`
	DependsOn   []string              `json:"depends_on,omitempty"`
	MaxRetries  *int                  `json:"max_retries,omitempty"`
}

// Validate checks the spec before it is allowed anywhere near the queue.
func (s Spec) Validate() error {
	if s.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if s.Risk != "" && !s.Risk.Valid() {
		return fmt.Errorf("%w: unknown risk level %q", ErrValidation, s.Risk)
	}
	if s.Urgency != "" && !s.Urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency level %q", ErrValidation, s.Urgency)
	}
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be >= 0", ErrValidation)
	}
	seen := make(map[string]bool, len(s.DependsOn))
	for _, dep := range s.DependsOn {
		if dep == "" {
			return fmt.Errorf("%w: empty dependency id", ErrValidation)
		}
		if seen[dep] {
			return fmt.Errorf("%w: duplicate dependency %s", ErrValidation, dep)
		}
		seen[dep] = true
	}
	return nil
}
