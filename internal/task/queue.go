// Package task provides a small in-process queue for background work such
// as sending order-confirmation email.
package task

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrQueueFull is returned by Enqueue when the queue buffer is exhausted.
var ErrQueueFull = errors.New("task queue is full")

// Task is one unit of background work. Payload is an opaque blob the
// registered handler knows how to decode.
type Task struct {
	Name    string
	Payload []byte
}

// Queue accepts tasks for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, t Task) error
}

var _ Queue = (*ChanQueue)(nil)

// ChanQueue is a bounded in-memory queue backed by a channel.
type ChanQueue struct {
	tasks chan Task
}

// NewChanQueue returns a queue buffering up to size pending tasks.
func NewChanQueue(size int) *ChanQueue {
	return &ChanQueue{tasks: make(chan Task, size)}
}

// Enqueue adds a task without blocking. A full buffer fails fast with
// ErrQueueFull so the caller can decide whether that is fatal.
func (q *ChanQueue) Enqueue(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Tasks exposes the receive side for the worker pool.
func (q *ChanQueue) Tasks() <-chan Task {
	return q.tasks
}
