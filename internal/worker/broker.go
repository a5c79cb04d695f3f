package worker

import (
	"container/heap"
	"context"
	"sync"
)

// MemoryBroker is an in-process priority queue implementing Broker, the
// broker internal/bootstrap wires for both cmd/highlighter-api and
// cmd/highlighter-worker, and the one unit tests use. Dequeue removes a task
// outright, so a task dequeued but never Acked is not redelivered, and
// queued tasks do not survive a process restart (a Redis-streams broker
// could use XPENDING/XCLAIM for redelivery).
type MemoryBroker struct {
	mu sync.Mutex
	pq taskHeap
}

// NewMemoryBroker returns an empty MemoryBroker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

func (b *MemoryBroker) Enqueue(_ context.Context, t Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	heap.Push(&b.pq, t)
	return nil
}

func (b *MemoryBroker) Dequeue(_ context.Context) (Task, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pq.Len() == 0 {
		return Task{}, false, nil
	}
	t := heap.Pop(&b.pq).(Task)
	return t, true, nil
}

// Ack is a no-op for MemoryBroker: the task was already removed from the
// queue on Dequeue, there is nothing left to acknowledge.
func (b *MemoryBroker) Ack(_ context.Context, _ Task) error {
	return nil
}

// taskHeap orders Tasks highest Priority first, following container/heap's
// standard priority-queue recipe.
type taskHeap []Task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].Priority > h[j].Priority }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(Task)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
