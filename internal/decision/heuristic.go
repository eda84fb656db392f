package decision

import "strings"

// Keyword sets for level inference. Matching is substring-based over the
// lowercased description, so "restarting" triggers "restart".
var (
	highRiskKeywords = []string{
		"delete", "drop", "wipe", "destroy", "truncate", "credential",
		"secret", "password", "production", "prod ", "irreversible",
	}
	mediumRiskKeywords = []string{
		"restart", "kill", "rotate", "deploy", "migrate", "modify",
		"update", "scal", "failover",
	}
	highUrgencyKeywords = []string{
		"outage", "down", "critical", "immediately", "urgent", "failing",
		"data loss", "unreachable", "on fire",
	}
	mediumUrgencyKeywords = []string{
		"degraded", "slow", "warning", "soon", "elevated", "filling",
		"approaching",
	}
)

// InferLevels estimates risk and urgency from a free-text description.
// It is a fallback for reporters that cannot assess levels themselves;
// explicit levels always win. Unmatched text defaults to low/low, which
// classifies as log-only, the safest disposition for an unknown signal.
func InferLevels(description string) (RiskLevel, UrgencyLevel) {
	text := strings.ToLower(description)

	risk := RiskLow
	switch {
	case containsAny(text, highRiskKeywords):
		risk = RiskHigh
	case containsAny(text, mediumRiskKeywords):
		risk = RiskMedium
	}

	urgency := UrgencyLow
	switch {
	case containsAny(text, highUrgencyKeywords):
		urgency = UrgencyHigh
	case containsAny(text, mediumUrgencyKeywords):
		urgency = UrgencyMedium
	}

	return risk, urgency
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
