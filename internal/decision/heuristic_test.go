package decision

import "testing"

func TestInferLevels(t *testing.T) {
	cases := []struct {
		description string
		wantRisk    RiskLevel
		wantUrgency UrgencyLevel
	}{
		{"delete stale records from production database", RiskHigh, UrgencyLow},
		{"api server is down, restart required immediately", RiskMedium, UrgencyHigh},
		{"rotate credentials for the billing service", RiskHigh, UrgencyLow},
		{"disk usage filling on /var", RiskLow, UrgencyMedium},
		{"response times degraded, consider scaling up", RiskMedium, UrgencyMedium},
		{"nightly report completed", RiskLow, UrgencyLow},
		{"", RiskLow, UrgencyLow},
	}

	for _, tc := range cases {
		risk, urgency := InferLevels(tc.description)
		if risk != tc.wantRisk || urgency != tc.wantUrgency {
			t.Errorf("InferLevels(%q) = %s/%s, want %s/%s",
				tc.description, risk, urgency, tc.wantRisk, tc.wantUrgency)
		}
	}
}

func TestInferLevelsCaseInsensitive(t *testing.T) {
	risk, urgency := InferLevels("CRITICAL: service UNREACHABLE, DELETE bad node")
	if risk != RiskHigh || urgency != UrgencyHigh {
		t.Errorf("InferLevels() = %s/%s, want high/high", risk, urgency)
	}
}

func TestInferredDefaultsClassifyAsLogOnly(t *testing.T) {
	risk, urgency := InferLevels("routine heartbeat")
	if got := Classify(risk, urgency); got != ActionLogOnly {
		t.Errorf("unknown signal classified as %s, want log_only", got)
	}
}
