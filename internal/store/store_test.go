package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "warden.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func testTask(id string, deps ...string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:          id,
		Description: "restart stuck worker",
		Origin:      "monitor",
		Category:    "service-restart",
		Risk:        "medium",
		Urgency:     "high",
		Status:      "pending",
		DependsOn:   deps,
		MaxRetries:  3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateAndGetTask(t *testing.T) {
	db := openTestDB(t)

	in := testTask("t1")
	in.NotBefore = time.Now().Add(time.Minute).UTC()
	if err := db.CreateTask(in); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	got, err := db.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Description != in.Description {
		t.Errorf("Description = %q, want %q", got.Description, in.Description)
	}
	if got.Risk != "medium" || got.Urgency != "high" {
		t.Errorf("levels = %s/%s, want medium/high", got.Risk, got.Urgency)
	}
	if got.Status != "pending" {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.NotBefore.IsZero() {
		t.Error("NotBefore should round-trip")
	}
	if len(got.DependsOn) != 0 {
		t.Errorf("DependsOn = %v, want empty", got.DependsOn)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetTask("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTask() error = %v, want ErrNotFound", err)
	}
}

func TestCreateTaskDuplicateID(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateTask(testTask("t1")); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	err := db.CreateTask(testTask("t1"))
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("CreateTask() error = %v, want ErrDuplicateID", err)
	}
}

func TestCreateTaskUnknownDependency(t *testing.T) {
	db := openTestDB(t)

	err := db.CreateTask(testTask("t1", "ghost"))
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("CreateTask() error = %v, want ErrUnknownDependency", err)
	}
	if _, err := db.GetTask("t1"); !errors.Is(err, ErrNotFound) {
		t.Error("rejected insert should leave no row behind")
	}
}

func TestCreateTaskSelfDependency(t *testing.T) {
	db := openTestDB(t)

	err := db.CreateTask(testTask("t1", "t1"))
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("CreateTask() error = %v, want ErrUnknownDependency", err)
	}
}

func TestTaskDependenciesRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateTask(testTask("a")); err != nil {
		t.Fatalf("CreateTask(a) error = %v", err)
	}
	if err := db.CreateTask(testTask("b")); err != nil {
		t.Fatalf("CreateTask(b) error = %v", err)
	}
	if err := db.CreateTask(testTask("c", "a", "b")); err != nil {
		t.Fatalf("CreateTask(c) error = %v", err)
	}

	got, err := db.GetTask("c")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if len(got.DependsOn) != 2 || got.DependsOn[0] != "a" || got.DependsOn[1] != "b" {
		t.Errorf("DependsOn = %v, want [a b]", got.DependsOn)
	}
}

func TestUpdateTask(t *testing.T) {
	db := openTestDB(t)

	task := testTask("t1")
	if err := db.CreateTask(task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	task.Status = "running"
	task.ClaimedBy = "gen-1/worker-2"
	task.ClaimDeadline = time.Now().Add(10 * time.Minute).UTC()
	task.RetryCount = 1
	task.LastError = "connection refused"
	task.UpdatedAt = time.Now().UTC()
	if err := db.UpdateTask(task); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	got, err := db.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Status != "running" {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.ClaimedBy != "gen-1/worker-2" {
		t.Errorf("ClaimedBy = %q", got.ClaimedBy)
	}
	if got.ClaimDeadline.IsZero() {
		t.Error("ClaimDeadline should round-trip")
	}
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}
	if got.LastError != "connection refused" {
		t.Errorf("LastError = %q", got.LastError)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	db := openTestDB(t)

	err := db.UpdateTask(testTask("ghost"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTask() error = %v, want ErrNotFound", err)
	}
}

func TestListTasksByStatus(t *testing.T) {
	db := openTestDB(t)

	a := testTask("a")
	b := testTask("b")
	b.Status = "succeeded"
	for _, task := range []*Task{a, b} {
		if err := db.CreateTask(task); err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
	}

	pending, err := db.ListTasks("pending")
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "a" {
		t.Errorf("ListTasks(pending) = %d rows, want [a]", len(pending))
	}

	all, err := db.ListTasks("")
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListTasks(all) = %d rows, want 2", len(all))
	}
}

func TestListUnfinishedTasks(t *testing.T) {
	db := openTestDB(t)

	statuses := map[string]string{
		"p": "pending", "r": "running", "s": "succeeded",
		"x": "cancelled", "e": "escalated", "w": "awaiting_approval",
	}
	for id, status := range statuses {
		task := testTask(id)
		task.Status = status
		if err := db.CreateTask(task); err != nil {
			t.Fatalf("CreateTask(%s) error = %v", id, err)
		}
	}

	unfinished, err := db.ListUnfinishedTasks()
	if err != nil {
		t.Fatalf("ListUnfinishedTasks() error = %v", err)
	}
	if len(unfinished) != 3 {
		t.Errorf("got %d unfinished tasks, want 3", len(unfinished))
	}
	for _, task := range unfinished {
		switch task.Status {
		case "succeeded", "cancelled", "escalated", "rejected":
			t.Errorf("task %s with terminal status %s listed as unfinished", task.ID, task.Status)
		}
	}

	satisfied, err := db.ListSatisfiedTaskIDs()
	if err != nil {
		t.Fatalf("ListSatisfiedTaskIDs() error = %v", err)
	}
	if len(satisfied) != 1 || satisfied[0] != "s" {
		t.Errorf("ListSatisfiedTaskIDs() = %v, want [s]", satisfied)
	}
}

func TestAppendAndListDecisions(t *testing.T) {
	db := openTestDB(t)

	records := []*Decision{
		{ID: "d1", TaskID: "t1", Seq: 1, Kind: "decision", ActionClass: "auto_fix", Disposition: "queued", CreatedAt: time.Now().UTC()},
		{ID: "d2", TaskID: "t1", Seq: 2, Kind: "transition", Detail: "pending -> ready", CreatedAt: time.Now().UTC()},
	}
	for _, d := range records {
		if err := db.AppendDecision(d); err != nil {
			t.Fatalf("AppendDecision() error = %v", err)
		}
	}

	got, err := db.ListDecisionsByTask("t1")
	if err != nil {
		t.Fatalf("ListDecisionsByTask() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d decisions, want 2", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("decisions out of seq order: %d, %d", got[0].Seq, got[1].Seq)
	}
	if got[0].ActionClass != "auto_fix" {
		t.Errorf("ActionClass = %q, want auto_fix", got[0].ActionClass)
	}

	seq, err := db.MaxDecisionSeq("t1")
	if err != nil {
		t.Fatalf("MaxDecisionSeq() error = %v", err)
	}
	if seq != 2 {
		t.Errorf("MaxDecisionSeq() = %d, want 2", seq)
	}
}

func TestAppendDecisionDuplicateSeq(t *testing.T) {
	db := openTestDB(t)

	d := &Decision{ID: "d1", TaskID: "t1", Seq: 1, Kind: "decision", CreatedAt: time.Now().UTC()}
	if err := db.AppendDecision(d); err != nil {
		t.Fatalf("AppendDecision() error = %v", err)
	}
	dup := &Decision{ID: "d2", TaskID: "t1", Seq: 1, Kind: "decision", CreatedAt: time.Now().UTC()}
	if err := db.AppendDecision(dup); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("AppendDecision() error = %v, want ErrDuplicateID", err)
	}
}

func TestMaxDecisionSeqEmpty(t *testing.T) {
	db := openTestDB(t)

	seq, err := db.MaxDecisionSeq("nothing")
	if err != nil {
		t.Fatalf("MaxDecisionSeq() error = %v", err)
	}
	if seq != 0 {
		t.Errorf("MaxDecisionSeq() = %d, want 0", seq)
	}
}

func testApproval(id, taskID string) *Approval {
	now := time.Now().UTC()
	return &Approval{
		ID:          id,
		TaskID:      taskID,
		Action:      "restart stuck worker",
		RequestedAt: now,
		Deadline:    now.Add(30 * time.Minute),
		Outcome:     "pending",
	}
}

func TestCreateAndResolveApproval(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateApproval(testApproval("a1", "t1")); err != nil {
		t.Fatalf("CreateApproval() error = %v", err)
	}

	if err := db.ResolveApproval("a1", "approved", "operator", time.Now().UTC()); err != nil {
		t.Fatalf("ResolveApproval() error = %v", err)
	}

	got, err := db.GetApproval("a1")
	if err != nil {
		t.Fatalf("GetApproval() error = %v", err)
	}
	if got.Outcome != "approved" {
		t.Errorf("Outcome = %q, want approved", got.Outcome)
	}
	if got.Responder != "operator" {
		t.Errorf("Responder = %q, want operator", got.Responder)
	}
	if got.ResolvedAt.IsZero() {
		t.Error("ResolvedAt should be set")
	}
}

func TestResolveApprovalTwice(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateApproval(testApproval("a1", "t1")); err != nil {
		t.Fatalf("CreateApproval() error = %v", err)
	}
	if err := db.ResolveApproval("a1", "denied", "operator", time.Now().UTC()); err != nil {
		t.Fatalf("first ResolveApproval() error = %v", err)
	}

	err := db.ResolveApproval("a1", "approved", "other", time.Now().UTC())
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second ResolveApproval() error = %v, want ErrAlreadyResolved", err)
	}

	got, _ := db.GetApproval("a1")
	if got.Outcome != "denied" || got.Responder != "operator" {
		t.Errorf("first resolution was overwritten: %s by %s", got.Outcome, got.Responder)
	}
}

func TestResolveApprovalNotFound(t *testing.T) {
	db := openTestDB(t)

	err := db.ResolveApproval("ghost", "approved", "operator", time.Now().UTC())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolveApproval() error = %v, want ErrNotFound", err)
	}
}

func TestOneOpenApprovalPerTask(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateApproval(testApproval("a1", "t1")); err != nil {
		t.Fatalf("CreateApproval() error = %v", err)
	}
	err := db.CreateApproval(testApproval("a2", "t1"))
	if !errors.Is(err, ErrOpenApprovalExists) {
		t.Errorf("CreateApproval() error = %v, want ErrOpenApprovalExists", err)
	}

	// Resolving the first request reopens the slot.
	if err := db.ResolveApproval("a1", "timed_out", "", time.Now().UTC()); err != nil {
		t.Fatalf("ResolveApproval() error = %v", err)
	}
	if err := db.CreateApproval(testApproval("a2", "t1")); err != nil {
		t.Errorf("CreateApproval() after resolution error = %v", err)
	}
}

func TestMarkPromptSent(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateApproval(testApproval("a1", "t1")); err != nil {
		t.Fatalf("CreateApproval() error = %v", err)
	}
	if err := db.MarkPromptSent("a1", "msg-42"); err != nil {
		t.Fatalf("MarkPromptSent() error = %v", err)
	}

	got, err := db.GetApproval("a1")
	if err != nil {
		t.Fatalf("GetApproval() error = %v", err)
	}
	if !got.PromptSent {
		t.Error("PromptSent = false, want true")
	}
	if got.MessageID != "msg-42" {
		t.Errorf("MessageID = %q, want msg-42", got.MessageID)
	}
}

func TestListOpenApprovalsOrderedByDeadline(t *testing.T) {
	db := openTestDB(t)

	now := time.Now().UTC()
	later := testApproval("a1", "t1")
	later.Deadline = now.Add(time.Hour)
	sooner := testApproval("a2", "t2")
	sooner.Deadline = now.Add(time.Minute)
	resolved := testApproval("a3", "t3")
	resolved.Outcome = "approved"

	for _, a := range []*Approval{later, sooner, resolved} {
		if err := db.CreateApproval(a); err != nil {
			t.Fatalf("CreateApproval(%s) error = %v", a.ID, err)
		}
	}

	open, err := db.ListOpenApprovals()
	if err != nil {
		t.Fatalf("ListOpenApprovals() error = %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("got %d open approvals, want 2", len(open))
	}
	if open[0].ID != "a2" || open[1].ID != "a1" {
		t.Errorf("open approvals = [%s %s], want [a2 a1]", open[0].ID, open[1].ID)
	}
}

func TestGetOpenApprovalByTask(t *testing.T) {
	db := openTestDB(t)

	if err := db.CreateApproval(testApproval("a1", "t1")); err != nil {
		t.Fatalf("CreateApproval() error = %v", err)
	}

	got, err := db.GetOpenApprovalByTask("t1")
	if err != nil {
		t.Fatalf("GetOpenApprovalByTask() error = %v", err)
	}
	if got.ID != "a1" {
		t.Errorf("ID = %q, want a1", got.ID)
	}

	if _, err := db.GetOpenApprovalByTask("t2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOpenApprovalByTask(t2) error = %v, want ErrNotFound", err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if err := db.CreateTask(testTask("t1")); err != nil {
		t.Fatalf("CreateTask() after re-migrate error = %v", err)
	}
}
