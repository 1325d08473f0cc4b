package msgloop

import (
	"sync"
	"time"
)

// chunkSize is the number of tasks per node in a taskQueue.
const chunkSize = 64

// PendingTask is a unit of work plus its scheduling metadata.
type PendingTask struct {
	// Task is the callback.
	Task func()

	// TimePosted is when the task was posted.
	TimePosted time.Time

	// DelayedRunTime is the earliest time the task may run, or the zero
	// value for immediate tasks (which are eligible from TimePosted).
	DelayedRunTime time.Time

	// Sequence orders tasks posted to the same loop, and breaks ties between
	// delayed tasks with equal run times.
	Sequence uint64

	// Nestable is false for tasks that must not run from a nested Run.
	Nestable bool
}

// IsDelayed reports whether the task was posted with a positive delay.
func (p *PendingTask) IsDelayed() bool {
	return !p.DelayedRunTime.IsZero()
}

// runTime returns the time the task became eligible to run.
func (p *PendingTask) runTime() time.Time {
	if p.IsDelayed() {
		return p.DelayedRunTime
	}
	return p.TimePosted
}

// taskQueue is a chunked linked-list FIFO of PendingTask values.
//
// Thread Safety: This struct is NOT thread-safe. The incoming queue is
// guarded by Loop.incomingMu, every other queue belongs to the loop
// goroutine.
type taskQueue struct {
	head   *taskChunk
	tail   *taskChunk
	length int
}

// taskChunk is a fixed-size node, using readPos/pos cursors for O(1)
// push/pop without shifting.
type taskChunk struct {
	next    *taskChunk
	tasks   [chunkSize]PendingTask
	readPos int
	pos     int
}

// taskChunkPool prevents GC thrashing under high load.
var taskChunkPool = sync.Pool{
	New: func() any {
		return &taskChunk{}
	},
}

func newTaskChunk() *taskChunk {
	c := taskChunkPool.Get().(*taskChunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnTaskChunk clears any retained closures before pooling c.
func returnTaskChunk(c *taskChunk) {
	clear(c.tasks[:c.pos])
	c.pos = 0
	c.readPos = 0
	c.next = nil
	taskChunkPool.Put(c)
}

func (q *taskQueue) push(task PendingTask) {
	if q.tail == nil {
		q.tail = newTaskChunk()
		q.head = q.tail
	}
	if q.tail.pos == len(q.tail.tasks) {
		c := newTaskChunk()
		q.tail.next = c
		q.tail = c
	}
	q.tail.tasks[q.tail.pos] = task
	q.tail.pos++
	q.length++
}

func (q *taskQueue) pop() (PendingTask, bool) {
	if q.length == 0 {
		return PendingTask{}, false
	}
	for q.head.readPos >= q.head.pos {
		old := q.head
		q.head = old.next
		returnTaskChunk(old)
	}
	task := q.head.tasks[q.head.readPos]
	q.head.tasks[q.head.readPos] = PendingTask{}
	q.head.readPos++
	q.length--
	if q.length == 0 {
		// keep a single chunk around, reset for reuse
		for q.head != q.tail {
			old := q.head
			q.head = old.next
			returnTaskChunk(old)
		}
		q.head.pos = 0
		q.head.readPos = 0
	}
	return task, true
}

func (q *taskQueue) len() int {
	return q.length
}

// swap exchanges the contents of the two queues, in O(1).
func (q *taskQueue) swap(other *taskQueue) {
	*q, *other = *other, *q
}

// clear drops every task, returning them in FIFO order if keep is true.
func (q *taskQueue) clear(keep bool) (dropped []PendingTask, n int) {
	for {
		task, ok := q.pop()
		if !ok {
			return dropped, n
		}
		n++
		if keep {
			dropped = append(dropped, task)
		}
	}
}

// delayedTaskQueue is a min-heap of PendingTask, ordered by
// (DelayedRunTime, Sequence).
type delayedTaskQueue []PendingTask

// Implement heap.Interface for delayedTaskQueue
func (h delayedTaskQueue) Len() int { return len(h) }
func (h delayedTaskQueue) Less(i, j int) bool {
	if h[i].DelayedRunTime.Equal(h[j].DelayedRunTime) {
		return h[i].Sequence < h[j].Sequence
	}
	return h[i].DelayedRunTime.Before(h[j].DelayedRunTime)
}
func (h delayedTaskQueue) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayedTaskQueue) Push(x any) {
	*h = append(*h, x.(PendingTask))
}

func (h *delayedTaskQueue) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = PendingTask{}
	*h = old[:n-1]
	return x
}
