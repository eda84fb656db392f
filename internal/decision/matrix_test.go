package decision

import "testing"

func TestClassify_CanonicalTable(t *testing.T) {
	cases := []struct {
		risk    RiskLevel
		urgency UrgencyLevel
		want    ActionClass
	}{
		{RiskLow, UrgencyLow, ActionLogOnly},
		{RiskLow, UrgencyMedium, ActionLogOnly},
		{RiskLow, UrgencyHigh, ActionNotify},
		{RiskMedium, UrgencyLow, ActionNotify},
		{RiskMedium, UrgencyMedium, ActionNotify},
		{RiskMedium, UrgencyHigh, ActionAutoFix},
		{RiskHigh, UrgencyLow, ActionNotify},
		{RiskHigh, UrgencyMedium, ActionAutoFix},
		{RiskHigh, UrgencyHigh, ActionImmediateIntervention},
	}

	for _, tc := range cases {
		got := Classify(tc.risk, tc.urgency)
		if got != tc.want {
			t.Errorf("Classify(%s, %s) = %s, want %s", tc.risk, tc.urgency, got, tc.want)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for _, risk := range []RiskLevel{RiskLow, RiskMedium, RiskHigh} {
		for _, urgency := range []UrgencyLevel{UrgencyLow, UrgencyMedium, UrgencyHigh} {
			first := Classify(risk, urgency)
			second := Classify(risk, urgency)
			if first != second {
				t.Errorf("Classify(%s, %s) not deterministic: %s then %s", risk, urgency, first, second)
			}
		}
	}
}

func TestClassify_UnknownLevelsDegradeSafely(t *testing.T) {
	if got := Classify("bogus", UrgencyHigh); got != ActionNotify {
		t.Errorf("unknown risk should degrade to low: got %s", got)
	}
	if got := Classify(RiskHigh, "bogus"); got != ActionNotify {
		t.Errorf("unknown urgency should degrade to low: got %s", got)
	}
}

func TestActionClass_SeverityOrdering(t *testing.T) {
	order := []ActionClass{ActionLogOnly, ActionNotify, ActionAutoFix, ActionImmediateIntervention}
	for i := 1; i < len(order); i++ {
		if order[i].Severity() <= order[i-1].Severity() {
			t.Errorf("severity of %s (%d) should exceed %s (%d)",
				order[i], order[i].Severity(), order[i-1], order[i-1].Severity())
		}
	}
}

func TestLevels_Valid(t *testing.T) {
	if !RiskMedium.Valid() || RiskLevel("nope").Valid() {
		t.Error("RiskLevel.Valid misbehaves")
	}
	if !UrgencyHigh.Valid() || UrgencyLevel("nope").Valid() {
		t.Error("UrgencyLevel.Valid misbehaves")
	}
	if !ActionAutoFix.Valid() || ActionClass("nope").Valid() {
		t.Error("ActionClass.Valid misbehaves")
	}
}
