// Package queue buffers outbound frames between producers (ingestion
// endpoints, scheduler) and the single drain worker of the active link.
package queue

import (
	"sync"

	"github.com/danmuck/dapcore/internal/protocol/frame"
)

// Queue is an unbounded FIFO safe for many producers and one consumer.
type Queue struct {
	mu     sync.Mutex
	items  []frame.Frame
	signal chan struct{}
}

func New() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

func (q *Queue) Push(f frame.Frame) {
	q.mu.Lock()
	q.items = append(q.items, f)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop removes the oldest frame. ok is false when the queue is empty.
func (q *Queue) Pop() (frame.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return frame.Frame{}, false
	}
	f := q.items[0]
	q.items[0] = frame.Frame{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return f, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every queued frame and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Snapshot returns a copy of the queued frames in delivery order.
func (q *Queue) Snapshot() []frame.Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]frame.Frame, len(q.items))
	copy(out, q.items)
	return out
}

// Ready is signalled after a Push; consumers may select on it instead of polling.
func (q *Queue) Ready() <-chan struct{} {
	return q.signal
}
