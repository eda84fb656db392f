package task

import (
	"testing"
	"time"

	"github.com/sentinelops/warden/internal/decision"
)

func TestActionClassIsDerived(t *testing.T) {
	task := &Task{Risk: decision.RiskHigh, Urgency: decision.UrgencyHigh}
	if task.ActionClass() != decision.ActionImmediateIntervention {
		t.Errorf("ActionClass() = %s, want immediate_intervention", task.ActionClass())
	}

	// Reclassification follows the levels with no cached state.
	task.Risk = decision.RiskLow
	task.Urgency = decision.UrgencyLow
	if task.ActionClass() != decision.ActionLogOnly {
		t.Errorf("ActionClass() after reclassify = %s, want log_only", task.ActionClass())
	}
}

func TestPriorityScoreGrowsWithAge(t *testing.T) {
	created := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	task := &Task{Risk: decision.RiskMedium, Urgency: decision.UrgencyMedium, CreatedAt: created}

	young := task.PriorityScore(created.Add(time.Minute))
	old := task.PriorityScore(created.Add(time.Hour))
	if old <= young {
		t.Errorf("score must not decrease with age: %g then %g", young, old)
	}
}

func TestPriorityScoreSeverityDominatesAge(t *testing.T) {
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	stale := &Task{Risk: decision.RiskLow, Urgency: decision.UrgencyLow, CreatedAt: now.Add(-24 * time.Hour)}
	fresh := &Task{Risk: decision.RiskHigh, Urgency: decision.UrgencyHigh, CreatedAt: now}

	if fresh.PriorityScore(now) <= stale.PriorityScore(now) {
		t.Error("a fresh critical task must outrank a stale log-only task")
	}
}

func TestTransitionTableEdges(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusReady, true},
		{StatusPending, StatusAwaitingApproval, true},
		{StatusPending, StatusSucceeded, true},
		{StatusAwaitingApproval, StatusApproved, true},
		{StatusAwaitingApproval, StatusRejected, true},
		{StatusApproved, StatusReady, true},
		{StatusReady, StatusRunning, true},
		{StatusRunning, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},
		{StatusFailed, StatusPending, true},
		{StatusFailed, StatusEscalated, true},
		{StatusPending, StatusRunning, false},
		{StatusReady, StatusSucceeded, false},
		{StatusSucceeded, StatusPending, false},
		{StatusRejected, StatusReady, false},
		{StatusCancelled, StatusPending, false},
		{StatusRunning, StatusAwaitingApproval, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminals := []Status{StatusSucceeded, StatusRejected, StatusEscalated, StatusCancelled}
	for _, s := range terminals {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
	live := []Status{StatusPending, StatusAwaitingApproval, StatusApproved, StatusReady, StatusRunning, StatusFailed}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestSpecValidate(t *testing.T) {
	maxRetries := -1
	cases := []struct {
		name string
		spec Spec
		ok   bool
	}{
		{"valid", Spec{Description: "restart api", Risk: decision.RiskLow, Urgency: decision.UrgencyLow}, true},
		{"levels omitted", Spec{Description: "restart api"}, true},
		{"empty description", Spec{}, false},
		{"bad risk", Spec{Description: "x", Risk: "extreme"}, false},
		{"bad urgency", Spec{Description: "x", Urgency: "asap"}, false},
		{"negative retries", Spec{Description: "x", MaxRetries: &maxRetries}, false},
		{"empty dependency", Spec{Description: "x", DependsOn: []string{""}}, false},
		{"duplicate dependency", Spec{Description: "x", DependsOn: []string{"a", "a"}}, false},
	}
	for _, tc := range cases {
		err := tc.spec.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: Validate() error = %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: Validate() accepted an invalid spec", tc.name)
		}
	}
}
