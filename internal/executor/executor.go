// Package executor runs the concrete remediation behind a task.
// Executors are registered per task category; the coordinator never
// knows what a category does, only whether it succeeded.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sentinelops/warden/internal/task"
)

// ErrNoExecutor indicates no executor is registered for a task category.
var ErrNoExecutor = errors.New("no executor registered for category")

// Executor performs the work a task describes.
// Idempotent reports whether a failed or interrupted attempt is safe to
// retry; non-idempotent work escalates on first failure instead.
type Executor interface {
	Execute(ctx context.Context, t *task.Task) (output string, err error)
	Idempotent() bool
}

// Registry maps task categories to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	fallback  Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register binds an executor to a category, replacing any previous one.
func (r *Registry) Register(category string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[category] = e
}

// SetFallback sets the executor used for categories with no binding.
func (r *Registry) SetFallback(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = e
}

// Lookup returns the executor for a category.
func (r *Registry) Lookup(category string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.executors[category]; ok {
		return e, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoExecutor, category)
}

// Categories returns the registered category names.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for c := range r.executors {
		out = append(out, c)
	}
	return out
}
