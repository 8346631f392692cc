package prioinv

import (
	"container/heap"
	"time"
)

// Ensure waitQueue implements [heap.Interface].
var _ heap.Interface = (*waitQueue)(nil)

// waiter is a thread blocked on a [Resource].
type waiter struct {
	thread    *Thread
	priority  Priority
	enqueueAt time.Time
	index     int

	// The seqNo maintains arrival order among waiters of equal priority. It is
	// assigned on enqueue and is immutable.
	seqNo int64

	grantedCh chan struct{} // closed when the lock is handed over.
}

// Granted returns true if the lock has been handed to the waiter.
func (w *waiter) Granted() bool {
	select {
	case <-w.grantedCh:
		return true
	default:
		return false
	}
}

// waitQueue orders blocked threads so that the most urgent is served first.
// Waiters of equal priority are served in FIFO order. It is not safe for
// concurrent use; the owning [Resource] guards it.
type waitQueue struct {
	waiters []*waiter
	seqNo   int64
}

func (q *waitQueue) enqueue(t *Thread) *waiter {
	w := &waiter{
		thread:    t,
		priority:  t.EffectivePriority(),
		enqueueAt: time.Now(),
		index:     -1,
		seqNo:     q.seqNo,
		grantedCh: make(chan struct{}),
	}
	q.seqNo++
	heap.Push(q, w)
	return w
}

// dequeue removes and returns the most urgent waiter, or nil.
func (q *waitQueue) dequeue() *waiter {
	if len(q.waiters) == 0 {
		return nil
	}
	return heap.Pop(q).(*waiter)
}

// peek returns the most urgent waiter without removing it, or nil.
func (q *waitQueue) peek() *waiter {
	if len(q.waiters) == 0 {
		return nil
	}
	return q.waiters[0]
}

// Len returns the number of blocked threads.
func (q *waitQueue) Len() int {
	return len(q.waiters)
}

// Less determines if the waiter at i should be served before the waiter at j.
// It is without side effects and may be called directly.
func (q *waitQueue) Less(i, j int) bool {
	a, b := q.waiters[i], q.waiters[j]
	if a.priority != b.priority {
		return a.priority.Higher(b.priority)
	}
	return a.seqNo < b.seqNo
}

// Swap swaps the waiters at indices i and j. This is used by the heap to
// reorder waiters. It should not be called directly.
func (q *waitQueue) Swap(i, j int) {
	q.waiters[i], q.waiters[j] = q.waiters[j], q.waiters[i]
	q.waiters[i].index = i
	q.waiters[j].index = j
}

// Push adds a new waiter. This is used by the heap. It should not be called
// directly.
func (q *waitQueue) Push(x any) {
	w := x.(*waiter)
	w.index = len(q.waiters)
	q.waiters = append(q.waiters, w)
}

// Pop removes and returns the last waiter. This is used by the heap. It should
// not be called directly.
func (q *waitQueue) Pop() any {
	old := q.waiters
	n := len(old)
	w := old[n-1]
	old[n-1] = nil // avoid memory leak
	w.index = -1   // for safety
	q.waiters = old[0 : n-1]
	return w
}
