package task

import (
	"github.com/sentinelops/warden/internal/decision"
	"github.com/sentinelops/warden/internal/store"
)

// toRow converts a task to its stored representation.
func toRow(t *Task) *store.Task {
	return &store.Task{
		ID:            t.ID,
		Description:   t.Description,
		Origin:        t.Origin,
		Category:      t.Category,
		Risk:          string(t.Risk),
		Urgency:       string(t.Urgency),
		Status:        string(t.Status),
		DependsOn:     append([]string(nil), t.DependsOn...),
		RetryCount:    t.RetryCount,
		MaxRetries:    t.MaxRetries,
		NotBefore:     t.NotBefore,
		ClaimedBy:     t.ClaimedBy,
		ClaimDeadline: t.ClaimDeadline,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		LastError:     t.LastError,
	}
}

// fromRow converts a stored row back to a task.
func fromRow(row *store.Task) *Task {
	return &Task{
		ID:            row.ID,
		Description:   row.Description,
		Origin:        row.Origin,
		Category:      row.Category,
		Risk:          decision.RiskLevel(row.Risk),
		Urgency:       decision.UrgencyLevel(row.Urgency),
		Status:        Status(row.Status),
		DependsOn:     append([]string(nil), row.DependsOn...),
		RetryCount:    row.RetryCount,
		MaxRetries:    row.MaxRetries,
		NotBefore:     row.NotBefore,
		ClaimedBy:     row.ClaimedBy,
		ClaimDeadline: row.ClaimDeadline,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		LastError:     row.LastError,
	}
}
