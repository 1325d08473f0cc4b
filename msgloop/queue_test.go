package msgloop

import (
	"container/heap"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_fifoAcrossChunks(t *testing.T) {
	var q taskQueue
	const n = chunkSize*3 + 7
	for i := range n {
		q.push(PendingTask{Sequence: uint64(i)})
	}
	require.Equal(t, n, q.len())
	for i := range n {
		task, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, uint64(i), task.Sequence)
	}
	_, ok := q.pop()
	assert.False(t, ok)
	assert.Same(t, q.head, q.tail)

	// reusable after draining
	q.push(PendingTask{Sequence: 42})
	task, ok := q.pop()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), task.Sequence)
}

func TestTaskQueue_swap(t *testing.T) {
	var a, b taskQueue
	a.push(PendingTask{Sequence: 1})
	a.push(PendingTask{Sequence: 2})
	a.swap(&b)
	assert.Equal(t, 0, a.len())
	assert.Equal(t, 2, b.len())
	task, _ := b.pop()
	assert.Equal(t, uint64(1), task.Sequence)
}

func TestTaskQueue_clear(t *testing.T) {
	var q taskQueue
	for i := range 3 {
		q.push(PendingTask{Sequence: uint64(i)})
	}
	dropped, n := q.clear(true)
	assert.Equal(t, 3, n)
	assert.Len(t, dropped, 3)
	assert.Equal(t, 0, q.len())

	q.push(PendingTask{})
	dropped, n = q.clear(false)
	assert.Equal(t, 1, n)
	assert.Nil(t, dropped)
}

func TestDelayedTaskQueue_tieBreakBySequence(t *testing.T) {
	base := time.Unix(1700000000, 0)
	var h delayedTaskQueue
	for _, task := range []PendingTask{
		{Sequence: 5, DelayedRunTime: base.Add(time.Second)},
		{Sequence: 4, DelayedRunTime: base},
		{Sequence: 2, DelayedRunTime: base},
		{Sequence: 1, DelayedRunTime: base.Add(2 * time.Second)},
		{Sequence: 3, DelayedRunTime: base},
	} {
		heap.Push(&h, task)
	}
	var got []uint64
	for h.Len() != 0 {
		got = append(got, heap.Pop(&h).(PendingTask).Sequence)
	}
	if diff := cmp.Diff([]uint64{2, 3, 4, 5, 1}, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}
