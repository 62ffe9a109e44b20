// SPDX-License-Identifier: MIT
/*
Package queue provides the hand-off between the audio capture callback and the
consumer loop.

The queue is unbounded from the producer's point of view: Push never blocks
and never drops. The consumer drains whatever is available on each tick and
never waits for more. If the consumer stalls, memory grows with the number of
queued chunks; Len exposes the depth so it can be observed.
*/
package queue

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Push once the consumer side has gone away.
var ErrClosed = errors.New("queue: closed")

// Queue is a FIFO of sample chunks with a single producer and a single
// consumer. Chunks are treated as immutable once pushed.
type Queue struct {
	mu     sync.Mutex
	chunks [][]float32
	spare  [][]float32 // recycled backing array for chunks
	closed bool
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Push enqueues chunk. The caller hands over ownership and must not modify
// chunk afterwards.
func (q *Queue) Push(chunk []float32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.chunks = append(q.chunks, chunk)
	return nil
}

// TryPop removes and returns the oldest chunk. It reports false when the
// queue is empty.
func (q *Queue) TryPop() ([]float32, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) == 0 {
		return nil, false
	}
	chunk := q.chunks[0]
	q.chunks[0] = nil
	q.chunks = q.chunks[1:]
	return chunk, true
}

// Drain hands every chunk queued at the time of the call to fn, oldest first,
// and returns how many were handed over. fn runs without the lock held so the
// producer is never stalled by the consumer's processing.
func (q *Queue) Drain(fn func(chunk []float32)) int {
	q.mu.Lock()
	pending := q.chunks
	q.chunks = q.spare[:0]
	q.spare = nil
	q.mu.Unlock()

	for i, chunk := range pending {
		fn(chunk)
		pending[i] = nil
	}

	q.mu.Lock()
	if q.spare == nil {
		q.spare = pending[:0]
	}
	q.mu.Unlock()

	return len(pending)
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Close marks the consumer as gone. Subsequent pushes fail with ErrClosed;
// chunks already queued can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
