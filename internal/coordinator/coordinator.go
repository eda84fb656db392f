// Package coordinator is the decision-and-dispatch engine: it classifies
// incoming reports, gates risky work behind human approval, and drives a
// worker pool that executes what the policy allows to run autonomously.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sentinelops/warden/internal/approval"
	"github.com/sentinelops/warden/internal/audit"
	"github.com/sentinelops/warden/internal/decision"
	"github.com/sentinelops/warden/internal/executor"
	"github.com/sentinelops/warden/internal/notify"
	"github.com/sentinelops/warden/internal/task"
)

// Report is an observed condition submitted for classification. Risk
// and urgency are optional; missing levels are inferred from the
// description.
type Report struct {
	Description string                `json:"description"`
	Origin      string                `json:"origin"`
	Category    string                `json:"category"`
	Risk        decision.RiskLevel    `json:"risk,omitempty"`
	Urgency     decision.UrgencyLevel `json:"urgency,omitempty"`
	DependsOn   []string              `json:"depends_on,omitempty"`
	MaxRetries  *int                  `json:"max_retries,omitempty"`
}

// Outcome is what HandleReport decided for a report.
type Outcome struct {
	Task        *task.Task           `json:"task"`
	ActionClass decision.ActionClass `json:"action_class"`
	Gated       bool                 `json:"gated"`
}

// RequiredConfig holds the collaborators a Coordinator cannot run without.
type RequiredConfig struct {
	Manager   *task.Manager
	Approvals *approval.Workflow
	Trail     *audit.Trail
	Notifier  notify.Notifier
	Registry  *executor.Registry
	Policy    *decision.PolicyStore
}

func (c RequiredConfig) validate() error {
	if c.Manager == nil {
		return errors.New("coordinator requires a task manager")
	}
	if c.Approvals == nil {
		return errors.New("coordinator requires an approval workflow")
	}
	if c.Trail == nil {
		return errors.New("coordinator requires an audit trail")
	}
	if c.Notifier == nil {
		return errors.New("coordinator requires a notifier")
	}
	if c.Registry == nil {
		return errors.New("coordinator requires an executor registry")
	}
	if c.Policy == nil {
		return errors.New("coordinator requires a policy store")
	}
	return nil
}

// Coordinator routes reports through the decision matrix and runs the
// resulting tasks.
type Coordinator struct {
	manager   *task.Manager
	approvals *approval.Workflow
	trail     *audit.Trail
	notifier  notify.Notifier
	registry  *executor.Registry
	policy    *decision.PolicyStore

	workers         int
	pollInterval    time.Duration
	sweepInterval   time.Duration
	executorTimeout time.Duration
	timeoutFallback string

	emitter *EventEmitter
	logger  *DebugLogger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(c *Coordinator) { c.workers = n }
}

// WithPollInterval sets how often idle workers re-check the queue.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.pollInterval = d }
}

// WithSweepInterval sets the cadence of the periodic sweep that promotes
// backoff-gated tasks and times out stale approvals.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.sweepInterval = d }
}

// WithExecutorTimeout bounds a single execution attempt.
func WithExecutorTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.executorTimeout = d }
}

// WithTimeoutFallback selects what happens to a task whose approval
// request expires: "escalate" or "deny".
func WithTimeoutFallback(fallback string) Option {
	return func(c *Coordinator) { c.timeoutFallback = fallback }
}

// WithDebugLogger attaches a diagnostic logger.
func WithDebugLogger(l *DebugLogger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a Coordinator.
func New(cfg RequiredConfig, opts ...Option) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		manager:         cfg.Manager,
		approvals:       cfg.Approvals,
		trail:           cfg.Trail,
		notifier:        cfg.Notifier,
		registry:        cfg.Registry,
		policy:          cfg.Policy,
		workers:         4,
		pollInterval:    250 * time.Millisecond,
		sweepInterval:   30 * time.Second,
		executorTimeout: 10 * time.Minute,
		timeoutFallback: "escalate",
		emitter:         NewEventEmitter(256),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	return c, nil
}

// Events returns the coordinator's telemetry channel.
func (c *Coordinator) Events() <-chan Event {
	return c.emitter.Events()
}

// HandleReport classifies a report, records the decision, and routes the
// resulting task: log-only closes immediately, notify alerts and
// dispatches, auto-fix dispatches or gates per the whitelist, and
// immediate intervention dispatches with a synchronous critical alert
// unless the category is not pre-declared for emergencies, in which case
// it gates like everything else that can do harm.
func (c *Coordinator) HandleReport(ctx context.Context, report Report) (*Outcome, error) {
	if report.Risk == "" || report.Urgency == "" {
		inferredRisk, inferredUrgency := decision.InferLevels(report.Description)
		if report.Risk == "" {
			report.Risk = inferredRisk
		}
		if report.Urgency == "" {
			report.Urgency = inferredUrgency
		}
	}

	class := decision.Classify(report.Risk, report.Urgency)
	route, disposition := c.routeFor(class, report.Category)

	// The task is held out of the queue until the decision record is
	// durable; routing, alerts, prompts, and execution all come after.
	t, err := c.manager.Submit(task.Spec{
		Description: report.Description,
		Origin:      report.Origin,
		Category:    report.Category,
		Risk:        report.Risk,
		Urgency:     report.Urgency,
		DependsOn:   report.DependsOn,
		MaxRetries:  report.MaxRetries,
	}, task.RouteHold)
	if err != nil {
		return nil, err
	}

	if err := c.trail.RecordDecision(t.ID, string(class), disposition, report.Description); err != nil {
		if _, cancelErr := c.manager.Cancel(t.ID, "decision record failed"); cancelErr != nil {
			c.logger.Logf("task %s: unwind after decision record failure: %v", t.ID, cancelErr)
		}
		return nil, fmt.Errorf("record decision for task %s: %w", t.ID, err)
	}

	t, err = c.manager.RouteTask(t.ID, route)
	if err != nil {
		return nil, err
	}

	c.logger.Logf("report %q classified %s/%s -> %s (%s)",
		report.Description, report.Risk, report.Urgency, class, disposition)
	c.emitter.Emit(EventTaskSubmitted, t.ID, string(class))

	switch class {
	case decision.ActionNotify:
		c.notifier.SendAlert(ctx, notify.Alert{
			TaskID:   t.ID,
			Title:    report.Description,
			Severity: notify.SeverityWarning,
		})
	case decision.ActionImmediateIntervention:
		c.notifier.SendAlert(ctx, notify.Alert{
			TaskID:   t.ID,
			Title:    "immediate intervention: " + report.Description,
			Severity: notify.SeverityCritical,
		})
	}

	if route == task.RouteGate {
		if _, err := c.approvals.Request(ctx, t.ID, report.Description); err != nil {
			return nil, fmt.Errorf("open approval for task %s: %w", t.ID, err)
		}
		c.emitter.Emit(EventApprovalRequired, t.ID, report.Description)
	}

	return &Outcome{Task: t, ActionClass: class, Gated: route == task.RouteGate}, nil
}

// routeFor maps an action class and category to a lifecycle route under
// the active policy.
func (c *Coordinator) routeFor(class decision.ActionClass, category string) (task.Route, string) {
	switch class {
	case decision.ActionLogOnly:
		return task.RouteLog, "logged"
	case decision.ActionNotify:
		if c.policy.RequiresConsent(category) {
			return task.RouteGate, "notified, awaiting consent"
		}
		return task.RouteDispatch, "notified, queued"
	case decision.ActionAutoFix:
		if c.policy.IsWhitelisted(category) {
			return task.RouteDispatch, "auto-fix whitelisted, queued"
		}
		return task.RouteGate, "auto-fix awaiting approval"
	case decision.ActionImmediateIntervention:
		if c.policy.IsEmergency(category) {
			return task.RouteDispatch, "emergency intervention, queued"
		}
		return task.RouteGate, "intervention awaiting approval"
	default:
		return task.RouteLog, "logged"
	}
}

// ResolveApproval applies a human decision to an approval request and
// moves the gated task accordingly. A denial finalizes the task as
// Rejected and notifies with context.
func (c *Coordinator) ResolveApproval(ctx context.Context, requestID string, approved bool, responder string) (*approval.Request, error) {
	req, err := c.approvals.Resolve(requestID, approved, responder)
	if err != nil {
		return nil, err
	}
	if err := c.applyResolution(ctx, req, approved, responder); err != nil {
		return req, err
	}
	return req, nil
}

// ResolveApprovalByMessage resolves via a channel message ID, for
// reply-driven notification channels.
func (c *Coordinator) ResolveApprovalByMessage(ctx context.Context, messageID string, approved bool, responder string) (*approval.Request, error) {
	req, err := c.approvals.ResolveByMessage(messageID, approved, responder)
	if err != nil {
		return nil, err
	}
	if err := c.applyResolution(ctx, req, approved, responder); err != nil {
		return req, err
	}
	return req, nil
}

func (c *Coordinator) applyResolution(ctx context.Context, req *approval.Request, approved bool, responder string) error {
	c.emitter.Emit(EventApprovalResolved, req.TaskID, string(req.Outcome))
	if approved {
		return c.manager.Approve(req.TaskID, responder)
	}
	if err := c.manager.Reject(req.TaskID, responder); err != nil {
		return err
	}
	c.notifier.SendAlert(ctx, notify.Alert{
		TaskID:   req.TaskID,
		Title:    "action denied by " + responder,
		Body:     req.Action,
		Severity: notify.SeverityWarning,
	})
	return nil
}

// CancelTask cancels a task and its dependents, resolving any open
// approval so the request does not dangle.
func (c *Coordinator) CancelTask(ctx context.Context, taskID, reason string) ([]string, error) {
	cancelled, err := c.manager.Cancel(taskID, reason)
	if err != nil {
		return nil, err
	}
	for _, id := range cancelled {
		c.emitter.Emit(EventTaskCancelled, id, reason)
		c.closeOpenApproval(id, reason)
	}
	return cancelled, nil
}

func (c *Coordinator) closeOpenApproval(taskID, reason string) {
	requests, err := c.approvals.ListByTask(taskID)
	if err != nil {
		return
	}
	for _, req := range requests {
		if req.Outcome == approval.OutcomePending {
			c.approvals.Resolve(req.ID, false, "system: "+reason)
		}
	}
}

// Run recovers persisted state and drives the worker pool and sweep
// loop until the context is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.manager.Recover(); err != nil {
		return fmt.Errorf("recover tasks: %w", err)
	}
	if _, err := c.approvals.Redeliver(ctx); err != nil {
		c.logger.Logf("redeliver prompts: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			c.workerLoop(ctx, name)
		}(fmt.Sprintf("worker-%d", i))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sweepLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (c *Coordinator) workerLoop(ctx context.Context, name string) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		claimed, ok := c.manager.NextReady(name)
		if ok {
			c.execute(ctx, claimed)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// execute runs one claimed task through its executor and records the
// outcome.
func (c *Coordinator) execute(ctx context.Context, t *task.Task) {
	c.emitter.Emit(EventTaskStarted, t.ID, t.Category)
	c.logger.Logf("task %s: executing category %q as %s", t.ID, t.Category, t.ClaimedBy)

	exec, err := c.registry.Lookup(t.Category)
	if err != nil {
		c.trail.RecordCompletion(t.ID, "failed", err.Error())
		c.finishFailed(ctx, t, err, false)
		return
	}

	execCtx := ctx
	if c.executorTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, c.executorTimeout)
		defer cancel()
	}

	output, err := exec.Execute(execCtx, t)
	if err != nil {
		c.trail.RecordCompletion(t.ID, "failed", truncate(err.Error()+"\n"+output))
		c.finishFailed(ctx, t, err, exec.Idempotent())
		return
	}

	c.trail.RecordCompletion(t.ID, "succeeded", truncate(output))
	if err := c.manager.MarkSucceeded(t.ID, t.ClaimedBy, "executor completed"); err != nil {
		c.logger.Logf("task %s: record success: %v", t.ID, err)
		return
	}
	c.emitter.Emit(EventTaskSucceeded, t.ID, "")
}

func (c *Coordinator) finishFailed(ctx context.Context, t *task.Task, cause error, retryable bool) {
	escalated, err := c.manager.MarkFailed(t.ID, t.ClaimedBy, cause, retryable)
	if err != nil {
		c.logger.Logf("task %s: record failure: %v", t.ID, err)
		return
	}
	c.emitter.Emit(EventTaskFailed, t.ID, cause.Error())
	if escalated {
		c.alertEscalation(ctx, t.ID, cause.Error())
	}
}

// alertEscalation records the escalation and sends exactly one critical
// alert for it.
func (c *Coordinator) alertEscalation(ctx context.Context, taskID, reason string) {
	c.trail.RecordEscalation(taskID, reason)
	c.emitter.Emit(EventTaskEscalated, taskID, reason)
	c.notifier.SendAlert(ctx, notify.Alert{
		TaskID:   taskID,
		Title:    "task escalated to operator",
		Body:     reason,
		Severity: notify.SeverityCritical,
	})
}

func (c *Coordinator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep runs one maintenance pass: promote backoff-gated tasks, expire
// stale approvals, and retry undelivered prompts.
func (c *Coordinator) Sweep(ctx context.Context) {
	_, abandoned := c.manager.Tick()
	for _, id := range abandoned {
		detail := "claim expired with no retries left"
		if t, err := c.manager.Get(id); err == nil && t.LastError != "" {
			detail = t.LastError
		}
		c.alertEscalation(ctx, id, detail)
	}

	expired, err := c.approvals.CheckExpired()
	if err != nil {
		c.logger.Logf("sweep: check expired approvals: %v", err)
	}
	for _, req := range expired {
		c.emitter.Emit(EventApprovalResolved, req.TaskID, string(req.Outcome))
		if c.timeoutFallback == "deny" {
			if err := c.manager.Reject(req.TaskID, "system: approval timed out"); err != nil {
				c.logger.Logf("sweep: reject task %s: %v", req.TaskID, err)
			}
			c.notifier.SendAlert(ctx, notify.Alert{
				TaskID:   req.TaskID,
				Title:    "approval timed out, action denied",
				Body:     req.Action,
				Severity: notify.SeverityWarning,
			})
			continue
		}
		if err := c.manager.Escalate(req.TaskID, "approval timed out"); err != nil {
			c.logger.Logf("sweep: escalate task %s: %v", req.TaskID, err)
			continue
		}
		c.alertEscalation(ctx, req.TaskID, "approval request expired: "+req.Action)
	}

	if _, err := c.approvals.Redeliver(ctx); err != nil {
		c.logger.Logf("sweep: redeliver prompts: %v", err)
	}
}

// Stats is a point-in-time view of coordinator health.
type Stats struct {
	Tasks         task.Metrics `json:"tasks"`
	OpenApprovals int          `json:"open_approvals"`
	EventsDropped uint64       `json:"events_dropped"`
}

// Stats returns current task metrics and approval backlog.
func (c *Coordinator) Stats() Stats {
	open, err := c.approvals.ListOpen()
	if err != nil {
		open = nil
	}
	return Stats{
		Tasks:         c.manager.Metrics(),
		OpenApprovals: len(open),
		EventsDropped: c.emitter.Dropped(),
	}
}

func truncate(s string) string {
	const limit = 2000
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "... (truncated)"
}
