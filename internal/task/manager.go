package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelops/warden/internal/audit"
	"github.com/sentinelops/warden/internal/decision"
	"github.com/sentinelops/warden/internal/graph"
	"github.com/sentinelops/warden/internal/store"
)

// Manager owns every task from submission to a terminal state. All
// mutations flow through its operations: each one validates the
// lifecycle edge, writes the audit record, persists the row, and only
// then updates in-memory state. An invalid transition is a no-op.
type Manager struct {
	mu    sync.Mutex
	db    store.TaskStore
	trail *audit.Trail
	graph *graph.DependencyGraph
	queue *readyQueue
	tasks map[string]*Task

	backoff           Backoff
	defaultMaxRetries int
	claimTTL          time.Duration
	generation        string
	seq               uint64
	clock             func() time.Time
	newID             func() string

	counters counters
}

type counters struct {
	submitted     uint64
	succeeded     uint64
	retries       uint64
	escalations   uint64
	cancellations uint64
}

// Metrics is a point-in-time snapshot of manager state.
type Metrics struct {
	StatusCounts  map[Status]int `json:"status_counts"`
	QueueDepth    int            `json:"queue_depth"`
	Submitted     uint64         `json:"submitted"`
	Succeeded     uint64         `json:"succeeded"`
	Retries       uint64         `json:"retries"`
	Escalations   uint64         `json:"escalations"`
	Cancellations uint64         `json:"cancellations"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackoff sets the retry backoff curve.
func WithBackoff(b Backoff) Option {
	return func(m *Manager) { m.backoff = b }
}

// WithDefaultMaxRetries sets the retry budget used when a spec omits one.
func WithDefaultMaxRetries(n int) Option {
	return func(m *Manager) { m.defaultMaxRetries = n }
}

// WithClaimTTL sets how long a worker may hold a Running claim before
// the sweep treats it as stalled.
func WithClaimTTL(d time.Duration) Option {
	return func(m *Manager) { m.claimTTL = d }
}

// WithGeneration sets the process generation embedded in claim tokens.
// Claims from other generations are reconciled during recovery.
func WithGeneration(gen string) Option {
	return func(m *Manager) { m.generation = gen }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// NewManager creates a task manager over the given store and audit trail.
func NewManager(db store.TaskStore, trail *audit.Trail, opts ...Option) *Manager {
	m := &Manager{
		db:                db,
		trail:             trail,
		graph:             graph.New(),
		queue:             newReadyQueue(),
		tasks:             make(map[string]*Task),
		backoff:           DefaultBackoff(),
		defaultMaxRetries: 3,
		claimTTL:          10 * time.Minute,
		generation:        uuid.New().String()[:8],
		clock:             time.Now,
		newID:             func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generation returns the claim-token generation of this manager instance.
func (m *Manager) Generation() string {
	return m.generation
}

// Route selects how a submitted task enters the lifecycle.
type Route int

const (
	// RouteDispatch promotes the task to Ready once unblocked.
	RouteDispatch Route = iota
	// RouteGate parks the task in AwaitingApproval.
	RouteGate
	// RouteLog finalizes the task immediately without dispatch.
	RouteLog
	// RouteHold leaves the task Pending. The caller routes it later with
	// RouteTask, after whatever bookkeeping must land first.
	RouteHold
)

// Submit validates a spec, registers the task, and routes it. A gated
// task moves straight to AwaitingApproval; a log-only task is recorded
// and finalized; otherwise the task becomes Ready as soon as its
// dependencies are satisfied. The task is durably stored before Submit
// returns.
func (m *Manager) Submit(spec Spec, route Route) (*Task, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dep := range spec.DependsOn {
		if !m.graph.Has(dep) {
			return nil, fmt.Errorf("%w: %s", graph.ErrUnknownDependency, dep)
		}
		if t, ok := m.tasks[dep]; ok && t.Status.Terminal() && t.Status != StatusSucceeded {
			return nil, fmt.Errorf("%w: dependency %s is %s and can never be satisfied",
				ErrValidation, dep, t.Status)
		}
	}

	now := m.clock().UTC()
	maxRetries := m.defaultMaxRetries
	if spec.MaxRetries != nil {
		maxRetries = *spec.MaxRetries
	}
	t := &Task{
		ID:          m.newID(),
		Description: spec.Description,
		Origin:      spec.Origin,
		Category:    spec.Category,
		Risk:        spec.Risk,
		Urgency:     spec.Urgency,
		Status:      StatusPending,
		DependsOn:   append([]string(nil), spec.DependsOn...),
		MaxRetries:  maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.db.CreateTask(toRow(t)); err != nil {
		return nil, fmt.Errorf("submit task: %w", err)
	}
	if err := m.graph.Add(t.ID, t.DependsOn); err != nil {
		return nil, fmt.Errorf("submit task: %w", err)
	}
	m.tasks[t.ID] = t
	m.counters.submitted++

	if err := m.trail.RecordTransition(t.ID, "new", string(StatusPending), "submitted by "+t.Origin); err != nil {
		return nil, err
	}

	if err := m.routeLocked(t, route); err != nil {
		return nil, err
	}

	copied := *t
	return &copied, nil
}

// RouteTask applies a route to a task submitted with RouteHold, letting
// the caller durably record its decision before the task can be
// claimed or closed.
func (m *Manager) RouteTask(id string, route Route) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err := m.routeLocked(t, route); err != nil {
		return nil, err
	}
	copied := *t
	return &copied, nil
}

func (m *Manager) routeLocked(t *Task, route Route) error {
	switch route {
	case RouteHold:
		return nil
	case RouteGate:
		return m.transitionLocked(t, StatusAwaitingApproval, "approval required", nil)
	case RouteLog:
		return m.closeLoggedLocked(t)
	default:
		m.promoteOneLocked(t)
		return nil
	}
}

// CloseLogged finalizes a log-only task: it is recorded in the trail and
// marked Succeeded without ever entering the ready queue.
func (m *Manager) CloseLogged(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return m.closeLoggedLocked(t)
}

func (m *Manager) closeLoggedLocked(t *Task) error {
	if err := m.transitionLocked(t, StatusSucceeded, "logged, no action taken", nil); err != nil {
		return err
	}
	m.counters.succeeded++
	m.graph.MarkSatisfied(t.ID)
	m.promoteDependentsLocked(t.ID)
	return nil
}

// Get returns a copy of the task.
func (m *Manager) Get(id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		row, err := m.db.GetTask(id)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return fromRow(row), nil
	}
	copied := *t
	return &copied, nil
}

// Ready reports whether a task is queued for execution: all dependencies
// satisfied, any approval granted, and no backoff pending.
func (m *Manager) Ready(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	return ok && t.Status == StatusReady
}

// List returns copies of tasks with the given status, or all live tasks
// when status is empty.
func (m *Manager) List(status Status) []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Task
	for _, t := range m.tasks {
		if status != "" && t.Status != status {
			continue
		}
		copied := *t
		out = append(out, &copied)
	}
	return out
}

// NextReady claims the highest-priority ready task for a worker. The
// claim is exclusive: the task moves Ready -> Running with a fencing
// token and deadline before the copy is returned, so no two workers can
// claim the same task.
func (m *Manager) NextReady(worker string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		t := m.queue.pop()
		if t == nil {
			return nil, false
		}
		if t.Status != StatusReady {
			// Cancelled between queueing and claim.
			continue
		}
		claim := m.generation + "/" + worker
		deadline := m.clock().UTC().Add(m.claimTTL)
		err := m.transitionLocked(t, StatusRunning, "claimed by "+claim, func(t *Task) {
			t.ClaimedBy = claim
			t.ClaimDeadline = deadline
		})
		if err != nil {
			// Claim could not be recorded; leave the task queued.
			m.queue.push(t, m.nextSeq())
			return nil, false
		}
		copied := *t
		return &copied, true
	}
}

// MarkSucceeded records a successful execution and unblocks dependents.
// The claim token must match the one issued by NextReady.
func (m *Manager) MarkSucceeded(id, claim, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.claimedTaskLocked(id, claim)
	if err != nil {
		return err
	}
	if err := m.transitionLocked(t, StatusSucceeded, detail, func(t *Task) {
		t.ClaimedBy = ""
		t.ClaimDeadline = time.Time{}
		t.LastError = ""
	}); err != nil {
		return err
	}
	m.counters.succeeded++
	m.graph.MarkSatisfied(id)
	m.promoteDependentsLocked(id)
	return nil
}

// MarkFailed records a failed execution attempt. A retryable failure
// within budget re-enters Pending behind a backoff delay; otherwise the
// task escalates. Returns true when the task escalated.
func (m *Manager) MarkFailed(id, claim string, cause error, retryable bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.claimedTaskLocked(id, claim)
	if err != nil {
		return false, err
	}

	reason := "execution failed"
	if cause != nil {
		reason = cause.Error()
	}
	if err := m.transitionLocked(t, StatusFailed, reason, func(t *Task) {
		t.ClaimedBy = ""
		t.ClaimDeadline = time.Time{}
		t.LastError = reason
	}); err != nil {
		return false, err
	}
	return m.resolveFailureLocked(t, reason, retryable)
}

// resolveFailureLocked routes a Failed task to retry or escalation.
func (m *Manager) resolveFailureLocked(t *Task, reason string, retryable bool) (bool, error) {
	if retryable && t.RetryCount < t.MaxRetries {
		delay := m.backoff.Delay(t.RetryCount)
		notBefore := m.clock().UTC().Add(delay)
		detail := fmt.Sprintf("retry %d/%d after %s", t.RetryCount+1, t.MaxRetries, delay.Round(time.Millisecond))
		err := m.transitionLocked(t, StatusPending, detail, func(t *Task) {
			t.RetryCount++
			t.NotBefore = notBefore
		})
		if err != nil {
			return false, err
		}
		m.counters.retries++
		return false, nil
	}

	detail := "retries exhausted: " + reason
	if !retryable {
		detail = "not retryable: " + reason
	}
	if err := m.transitionLocked(t, StatusEscalated, detail, nil); err != nil {
		return false, err
	}
	m.counters.escalations++
	return true, nil
}

// Approve releases a gated task. It becomes Ready immediately when its
// dependencies are satisfied.
func (m *Manager) Approve(id, responder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err := m.transitionLocked(t, StatusApproved, "approved by "+responder, nil); err != nil {
		return err
	}
	m.promoteOneLocked(t)
	return nil
}

// Reject finalizes a gated task after a denial.
func (m *Manager) Reject(id, responder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return m.transitionLocked(t, StatusRejected, "denied by "+responder, nil)
}

// Escalate moves a task to Escalated out of AwaitingApproval or Failed.
func (m *Manager) Escalate(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err := m.transitionLocked(t, StatusEscalated, reason, nil); err != nil {
		return err
	}
	m.counters.escalations++
	return nil
}

// Override replaces a task's assessed levels before it runs. The action
// class is derived state, so reclassification is automatic; the queue is
// reheapified because priorities may have shifted.
func (m *Manager) Override(id string, risk decision.RiskLevel, urgency decision.UrgencyLevel) error {
	if !risk.Valid() {
		return fmt.Errorf("%w: unknown risk level %q", ErrValidation, risk)
	}
	if !urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency level %q", ErrValidation, urgency)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if t.Status.Terminal() || t.Status == StatusRunning {
		return fmt.Errorf("%w: cannot override task in status %s", ErrInvalidTransition, t.Status)
	}

	detail := fmt.Sprintf("override %s/%s -> %s/%s", t.Risk, t.Urgency, risk, urgency)
	if _, err := m.trail.Append(id, audit.KindOverride, "", "", detail); err != nil {
		return err
	}

	prev := *t
	t.Risk = risk
	t.Urgency = urgency
	t.UpdatedAt = m.clock().UTC()
	if err := m.db.UpdateTask(toRow(t)); err != nil {
		*t = prev
		return fmt.Errorf("override task: %w", err)
	}
	m.queue.reheap()
	return nil
}

// Cancel cancels a task and cascades to every live transitive dependent,
// which can never run once an upstream task is cancelled. Returns the
// IDs of all tasks cancelled, the requested one first.
func (m *Manager) Cancel(id, reason string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if t.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, StatusCancelled)
	}

	if err := m.cancelOneLocked(t, reason); err != nil {
		return nil, err
	}
	cancelled := []string{id}
	for _, depID := range m.graph.TransitiveDependents(id) {
		dep, ok := m.tasks[depID]
		if !ok || dep.Status.Terminal() {
			continue
		}
		if err := m.cancelOneLocked(dep, "dependency "+id+" cancelled"); err != nil {
			return cancelled, err
		}
		cancelled = append(cancelled, depID)
	}
	return cancelled, nil
}

func (m *Manager) cancelOneLocked(t *Task, reason string) error {
	err := m.transitionLocked(t, StatusCancelled, reason, func(t *Task) {
		t.ClaimedBy = ""
		t.ClaimDeadline = time.Time{}
	})
	if err != nil {
		return err
	}
	m.counters.cancellations++
	m.queue.remove(t.ID)
	return nil
}

// Tick advances time-gated state: pending tasks whose backoff delay
// elapsed and whose dependencies are satisfied become Ready, and running
// tasks whose claim deadline passed are treated as failed attempts.
// Returns the number of tasks promoted to Ready and the IDs of tasks
// escalated because an expired claim exhausted their retries.
func (m *Manager) Tick() (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock().UTC()
	promoted := 0
	var escalated []string
	for _, t := range m.tasks {
		switch t.Status {
		case StatusPending, StatusApproved:
			if m.promoteOneLocked(t) {
				promoted++
			}
		case StatusRunning:
			if !t.ClaimDeadline.IsZero() && now.After(t.ClaimDeadline) {
				reason := "claim deadline exceeded by " + t.ClaimedBy
				err := m.transitionLocked(t, StatusFailed, reason, func(t *Task) {
					t.ClaimedBy = ""
					t.ClaimDeadline = time.Time{}
					t.LastError = reason
				})
				if err != nil {
					continue
				}
				if esc, err := m.resolveFailureLocked(t, reason, true); err == nil && esc {
					escalated = append(escalated, t.ID)
				}
			}
		}
	}
	return promoted, escalated
}

// Recover rebuilds in-memory state from the store after a restart.
// Succeeded tasks are restored as satisfied graph nodes, Ready tasks are
// re-queued, and Running claims from a previous generation are abandoned
// and requeued without consuming retry budget.
func (m *Manager) Recover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	satisfied, err := m.db.ListSatisfiedTaskIDs()
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	for _, id := range satisfied {
		if !m.graph.Has(id) {
			m.graph.Add(id, nil)
		}
		m.graph.MarkSatisfied(id)
	}

	rows, err := m.db.ListUnfinishedTasks()
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	// Rows come back in creation order, so dependencies precede dependents.
	for _, row := range rows {
		t := fromRow(row)
		for _, dep := range t.DependsOn {
			// A dependency that finished without succeeding (escalated,
			// rejected, cancelled) is in neither list. Register it as an
			// unsatisfied node so the dependent stays blocked.
			if !m.graph.Has(dep) {
				m.graph.Add(dep, nil)
			}
		}
		if !m.graph.Has(t.ID) {
			if err := m.graph.Add(t.ID, t.DependsOn); err != nil {
				return fmt.Errorf("recover task %s: %w", t.ID, err)
			}
		}
		m.tasks[t.ID] = t
	}

	for _, t := range m.tasks {
		switch t.Status {
		case StatusReady:
			m.queue.push(t, m.nextSeq())
		case StatusRunning:
			if claimGeneration(t.ClaimedBy) == m.generation {
				continue
			}
			reason := "stale claim " + t.ClaimedBy + " abandoned on restart"
			err := m.transitionLocked(t, StatusFailed, reason, func(t *Task) {
				t.ClaimedBy = ""
				t.ClaimDeadline = time.Time{}
				t.LastError = reason
			})
			if err != nil {
				return fmt.Errorf("recover task %s: %w", t.ID, err)
			}
			// Interrupted work is requeued without burning a retry.
			err = m.transitionLocked(t, StatusPending, "requeued after restart", func(t *Task) {
				t.NotBefore = time.Time{}
			})
			if err != nil {
				return fmt.Errorf("recover task %s: %w", t.ID, err)
			}
			m.promoteOneLocked(t)
		}
	}
	return nil
}

// Metrics returns a snapshot of task counts and lifetime counters.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[Status]int)
	for _, t := range m.tasks {
		counts[t.Status]++
	}
	return Metrics{
		StatusCounts:  counts,
		QueueDepth:    m.queue.Len(),
		Submitted:     m.counters.submitted,
		Succeeded:     m.counters.succeeded,
		Retries:       m.counters.retries,
		Escalations:   m.counters.escalations,
		Cancellations: m.counters.cancellations,
	}
}

// transitionLocked performs one lifecycle edge: legality check, audit
// record, field mutation, durable write. On persistence failure the
// in-memory task is restored, so a failed transition leaves no trace.
func (m *Manager) transitionLocked(t *Task, to Status, detail string, mutate func(*Task)) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	if err := m.trail.RecordTransition(t.ID, string(t.Status), string(to), detail); err != nil {
		return err
	}

	prev := *t
	t.Status = to
	if mutate != nil {
		mutate(t)
	}
	t.UpdatedAt = m.clock().UTC()
	if err := m.db.UpdateTask(toRow(t)); err != nil {
		*t = prev
		return fmt.Errorf("persist task %s: %w", t.ID, err)
	}
	return nil
}

// promoteOneLocked moves a Pending or Approved task to Ready when its
// dependencies are satisfied and any backoff delay has elapsed.
func (m *Manager) promoteOneLocked(t *Task) bool {
	if t.Status != StatusPending && t.Status != StatusApproved {
		return false
	}
	if !m.graph.Satisfied(t.ID) {
		return false
	}
	if !t.NotBefore.IsZero() && m.clock().UTC().Before(t.NotBefore) {
		return false
	}
	err := m.transitionLocked(t, StatusReady, "", func(t *Task) {
		t.NotBefore = time.Time{}
	})
	if err != nil {
		return false
	}
	m.queue.push(t, m.nextSeq())
	return true
}

// promoteDependentsLocked promotes every direct dependent that just
// became unblocked.
func (m *Manager) promoteDependentsLocked(id string) {
	for _, depID := range m.graph.Dependents(id) {
		if t, ok := m.tasks[depID]; ok {
			m.promoteOneLocked(t)
		}
	}
}

func (m *Manager) claimedTaskLocked(id, claim string) (*Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if t.Status != StatusRunning {
		return nil, fmt.Errorf("%w: task %s is %s, not running", ErrInvalidTransition, id, t.Status)
	}
	if t.ClaimedBy != claim {
		return nil, fmt.Errorf("%w: claim %q does not match holder %q", ErrInvalidTransition, claim, t.ClaimedBy)
	}
	return t, nil
}

func (m *Manager) nextSeq() uint64 {
	m.seq++
	return m.seq
}

func claimGeneration(claim string) string {
	for i := 0; i < len(claim); i++ {
		if claim[i] == '/' {
			return claim[:i]
		}
	}
	return claim
}
