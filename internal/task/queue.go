package task

import "container/heap"

// readyQueue is a max-priority queue of ready tasks.
// Ordering: action-class severity, then urgency, then age (older first),
// with a monotonic sequence as the final tie-break so ordering is stable.
// Insert and extract are O(log n); aging never requires a rescan because
// age order is fixed by submission time.
type readyQueue struct {
	items []*queued
}

type queued struct {
	task *Task
	seq  uint64
	// index is maintained by heap.Interface.
	index int
}

func newReadyQueue() *readyQueue {
	return &readyQueue{}
}

func (q *readyQueue) Len() int { return len(q.items) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]

	sa, sb := a.task.ActionClass().Severity(), b.task.ActionClass().Severity()
	if sa != sb {
		return sa > sb
	}
	ua, ub := urgencyWeight(a.task.Urgency), urgencyWeight(b.task.Urgency)
	if ua != ub {
		return ua > ub
	}
	if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
		return a.task.CreatedAt.Before(b.task.CreatedAt)
	}
	return a.seq < b.seq
}

func (q *readyQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *readyQueue) Push(x any) {
	item := x.(*queued)
	item.index = len(q.items)
	q.items = append(q.items, item)
}

func (q *readyQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.items = old[:n-1]
	return item
}

// push enqueues a task. Caller holds the manager lock.
func (q *readyQueue) push(t *Task, seq uint64) {
	heap.Push(q, &queued{task: t, seq: seq})
}

// pop removes and returns the highest-priority task, or nil when empty.
// Caller holds the manager lock.
func (q *readyQueue) pop() *Task {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*queued).task
}

// reheap restores heap order after task priorities changed in place.
// Caller holds the manager lock.
func (q *readyQueue) reheap() {
	heap.Init(q)
}

// remove drops a task from the queue by ID, returning true if it was present.
// Caller holds the manager lock.
func (q *readyQueue) remove(taskID string) bool {
	for _, item := range q.items {
		if item.task.ID == taskID {
			heap.Remove(q, item.index)
			return true
		}
	}
	return false
}
