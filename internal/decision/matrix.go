// Package decision implements the risk/urgency classification matrix that
// assigns an action class to every incoming task.
package decision

// RiskLevel represents the assessed risk of acting on a task.
type RiskLevel string

const (
	// RiskLow indicates the action is safe and easily reversible.
	RiskLow RiskLevel = "low"
	// RiskMedium indicates the action has moderate blast radius.
	RiskMedium RiskLevel = "medium"
	// RiskHigh indicates the action could cause significant damage.
	RiskHigh RiskLevel = "high"
)

// Valid returns true if the risk level is a known value.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// UrgencyLevel represents how quickly a task must be handled.
type UrgencyLevel string

const (
	// UrgencyLow indicates the task can wait indefinitely.
	UrgencyLow UrgencyLevel = "low"
	// UrgencyMedium indicates the task should be handled soon.
	UrgencyMedium UrgencyLevel = "medium"
	// UrgencyHigh indicates the task needs attention now.
	UrgencyHigh UrgencyLevel = "high"
)

// Valid returns true if the urgency level is a known value.
func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	default:
		return false
	}
}

// ActionClass is the disposition assigned to a task by the decision matrix.
type ActionClass string

const (
	// ActionLogOnly records the task in the audit trail with no further side effect.
	ActionLogOnly ActionClass = "log_only"
	// ActionNotify sends an alert and optionally accepts an async approval.
	ActionNotify ActionClass = "notify"
	// ActionAutoFix dispatches an automated fix, gated by approval unless whitelisted.
	ActionAutoFix ActionClass = "auto_fix"
	// ActionImmediateIntervention executes immediately with a synchronous notification.
	ActionImmediateIntervention ActionClass = "immediate_intervention"
)

// Valid returns true if the action class is a known value.
func (a ActionClass) Valid() bool {
	switch a {
	case ActionLogOnly, ActionNotify, ActionAutoFix, ActionImmediateIntervention:
		return true
	default:
		return false
	}
}

// Severity returns the scheduling severity of the action class.
// Higher values are scheduled first.
func (a ActionClass) Severity() int {
	switch a {
	case ActionImmediateIntervention:
		return 4
	case ActionAutoFix:
		return 3
	case ActionNotify:
		return 2
	case ActionLogOnly:
		return 1
	default:
		return 0
	}
}

// matrix is the canonical (risk, urgency) -> action class mapping.
// Cells are taken verbatim; there is no interpolation between them.
var matrix = map[RiskLevel]map[UrgencyLevel]ActionClass{
	RiskLow: {
		UrgencyLow:    ActionLogOnly,
		UrgencyMedium: ActionLogOnly,
		UrgencyHigh:   ActionNotify,
	},
	RiskMedium: {
		UrgencyLow:    ActionNotify,
		UrgencyMedium: ActionNotify,
		UrgencyHigh:   ActionAutoFix,
	},
	RiskHigh: {
		UrgencyLow:    ActionNotify,
		UrgencyMedium: ActionAutoFix,
		UrgencyHigh:   ActionImmediateIntervention,
	},
}

// Classify maps a (risk, urgency) pair to its action class.
// The function is pure and total: unknown levels are treated as their
// lowest value so a malformed pair degrades to the safest disposition.
func Classify(risk RiskLevel, urgency UrgencyLevel) ActionClass {
	if !risk.Valid() {
		risk = RiskLow
	}
	if !urgency.Valid() {
		urgency = UrgencyLow
	}
	return matrix[risk][urgency]
}
