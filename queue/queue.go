package queue

import (
	"errors"
	"sync"
)

var (
	// ErrEmpty is returned by TryPop when no item is buffered.
	ErrEmpty = errors.New("queue is empty")
	// ErrFull is returned by TryPush when the queue is at capacity.
	ErrFull = errors.New("queue is full")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("queue is closed")
)

// Queue is a bounded FIFO hand-off between pipeline stages. Both TryPush and
// TryPop are strictly non-blocking so a stalled consumer can never starve a
// producer's scheduler tick, and vice versa.
type Queue[T any] struct {
	mu     sync.Mutex
	items  chan T
	closed bool
}

// New creates a queue with the given capacity. A capacity below 1 is clamped
// to 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{items: make(chan T, capacity)}
}

// TryPush appends an item without blocking. It returns ErrFull when the queue
// is at capacity and ErrClosed after Close.
func (q *Queue[T]) TryPush(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.items <- item:
		return nil
	default:
		return ErrFull
	}
}

// TryPop removes the oldest item without blocking. It returns ErrEmpty when
// nothing is buffered. A closed queue still drains its remaining items before
// reporting ErrClosed.
func (q *Queue[T]) TryPop() (T, error) {
	var zero T
	select {
	case item := <-q.items:
		return item, nil
	default:
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return zero, ErrClosed
	}
	return zero, ErrEmpty
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.items)
}

// Close marks the queue closed. Buffered items remain poppable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
