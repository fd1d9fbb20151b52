package reminder

import (
	"container/heap"
	"time"
)

// taskQueue is a min-heap on FireAt, ties broken by ID.
type taskQueue []Task

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].FireAt.Equal(q[j].FireAt) {
		return q[i].ID < q[j].ID
	}
	return q[i].FireAt.Before(q[j].FireAt)
}
func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(Task)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	*q = old[:n-1]
	return t
}

func (q *taskQueue) push(t Task) { heap.Push(q, t) }

// popDue removes and returns every task due at or before now, earliest first.
func (q *taskQueue) popDue(now time.Time) []Task {
	var due []Task
	for q.Len() > 0 && !(*q)[0].FireAt.After(now) {
		due = append(due, heap.Pop(q).(Task))
	}
	return due
}

// next returns the earliest task.
func (q taskQueue) next() (Task, bool) {
	if len(q) == 0 {
		return Task{}, false
	}
	return q[0], true
}

// sorted returns a copy in firing order.
func (q taskQueue) sorted() []Task {
	cp := make(taskQueue, len(q))
	copy(cp, q)
	heap.Init(&cp)
	out := make([]Task, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(Task))
	}
	return out
}
