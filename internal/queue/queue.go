// Package queue implements the shared, unbounded, multi-producer
// single-consumer FIFO between Source Workers and the Dispatcher.
package queue

import (
	"sync"

	"github.com/schlitzer/pylogchop/pkg/types"
)

// Queue is safe for concurrent Push from many goroutines and
// concurrent Pop from one. Order across concurrent Push calls follows
// the queue's internal mutex, not call order of any single producer,
// but each producer's own pushes stay in its append order.
type Queue struct {
	mu   sync.Mutex
	msgs []types.QueueMessage
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Push appends a message to the tail of the queue.
func (q *Queue) Push(msg types.QueueMessage) {
	q.mu.Lock()
	q.msgs = append(q.msgs, msg)
	q.mu.Unlock()
}

// Pop removes and returns the message at the head of the queue. The
// second return value is false if the queue was empty.
func (q *Queue) Pop() (types.QueueMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) == 0 {
		return types.QueueMessage{}, false
	}
	msg := q.msgs[0]
	q.msgs[0] = types.QueueMessage{}
	q.msgs = q.msgs[1:]
	return msg, true
}

// Len reports the current queue depth. Intended for diagnostics only;
// it is stale the instant it is read under concurrent producers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}
