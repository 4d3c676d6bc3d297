// Package memory provides the in-process FIFO of pending patent tasks.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/patent-collector/internal/patent"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO. Ready delivers a wake-up signal whenever an
// item is enqueued so a consumer can wait on it alongside other channels and
// then call TryDequeue.
type Queue struct {
	mu         sync.Mutex
	items      []patent.Task
	unfinished int
	ready      chan struct{}
	closed     bool
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
	}
}

// Enqueue appends a task. It never blocks on capacity.
func (q *Queue) Enqueue(ctx context.Context, task patent.Task) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, task)
	q.unfinished++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// TryDequeue pops the oldest task without blocking.
func (q *Queue) TryDequeue() (patent.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return patent.Task{}, false
	}
	task := q.items[0]
	q.items[0] = patent.Task{}
	q.items = q.items[1:]
	return task, true
}

// Ready returns a channel signalled after enqueues. A receive does not
// guarantee an item is still present.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Len reports the number of tasks waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// MarkDone records that a dequeued task finished processing.
func (q *Queue) MarkDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished > 0 {
		q.unfinished--
	}
}

// Unfinished reports tasks enqueued but not yet marked done.
func (q *Queue) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}

// Close rejects further enqueues. Tasks already queued stay available to
// TryDequeue.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
