// Package graph provides the task dependency DAG used for scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrUnknownDependency indicates a task referenced a dependency that does not exist.
var ErrUnknownDependency = errors.New("unknown dependency")

// DependencyGraph is a directed acyclic graph of task dependencies.
// Nodes are task IDs; edges point from a task to the tasks it is blocked by.
type DependencyGraph struct {
	mu sync.RWMutex
	// edges maps task ID to IDs of tasks it depends on.
	edges map[string][]string
	// satisfied tracks tasks that reached their terminal success state.
	satisfied map[string]bool
}

// New creates an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		edges:     make(map[string][]string),
		satisfied: make(map[string]bool),
	}
}

// Add registers a task and its dependencies.
// Dependencies must already be present in the graph; an edge set that would
// introduce a cycle is rejected and the graph is left unchanged.
func (g *DependencyGraph) Add(id string, dependsOn []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.edges[id]; exists {
		return fmt.Errorf("task %s already in graph", id)
	}
	for _, depID := range dependsOn {
		if depID == id {
			return ErrCycleDetected
		}
		if _, exists := g.edges[depID]; !exists {
			return fmt.Errorf("task %s depends on %s: %w", id, depID, ErrUnknownDependency)
		}
	}

	g.edges[id] = append([]string(nil), dependsOn...)
	if g.hasCycleLocked() {
		delete(g.edges, id)
		return ErrCycleDetected
	}
	return nil
}

// hasCycleLocked detects back edges with DFS coloring. Caller holds the lock.
func (g *DependencyGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.edges))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range g.edges {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// Has reports whether the task is registered in the graph.
func (g *DependencyGraph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[id]
	return ok
}

// MarkSatisfied records that a task succeeded, unblocking its dependents.
func (g *DependencyGraph) MarkSatisfied(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.satisfied[id] = true
}

// Satisfied reports whether every dependency of the task has succeeded.
func (g *DependencyGraph) Satisfied(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, depID := range g.edges[id] {
		if !g.satisfied[depID] {
			return false
		}
	}
	return true
}

// Dependencies returns the IDs the given task depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the IDs of tasks that directly depend on the given task.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(id)
}

func (g *DependencyGraph) dependentsLocked(id string) []string {
	var dependents []string
	for taskID, deps := range g.edges {
		for _, depID := range deps {
			if depID == id {
				dependents = append(dependents, taskID)
				break
			}
		}
	}
	return dependents
}

// TransitiveDependents returns every task downstream of the given task.
func (g *DependencyGraph) TransitiveDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{id: true}
	frontier := []string{id}
	var result []string
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, depID := range g.dependentsLocked(current) {
			if seen[depID] {
				continue
			}
			seen[depID] = true
			frontier = append(frontier, depID)
			result = append(result, depID)
		}
	}
	return result
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}
