package pipeline

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned by Push when no slot frees up in time.
	ErrQueueFull = errors.New("pipeline: segment queue full")
	// ErrQueueEmpty is returned by Pop when nothing arrives in time.
	ErrQueueEmpty = errors.New("pipeline: segment queue empty")
)

// Chunk is a quantized, crossfaded segment ready for framing. Epoch is the
// style epoch it was generated under.
type Chunk struct {
	Epoch   uint64
	Samples []int16 // interleaved
}

// Queue is a bounded FIFO of chunks between the generator and the writer.
// Buffered audio never exceeds capacity chunks.
type Queue struct {
	ch chan Chunk
}

// NewQueue creates a queue holding at most capacity chunks.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Chunk, capacity)}
}

// Push enqueues c, waiting up to timeout for space.
func (q *Queue) Push(ctx context.Context, c Chunk, timeout time.Duration) error {
	select {
	case q.ch <- c:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.ch <- c:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop dequeues the oldest chunk, waiting up to timeout for one to arrive.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Chunk, error) {
	select {
	case c := <-q.ch:
		return c, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c := <-q.ch:
		return c, nil
	case <-timer.C:
		return Chunk{}, ErrQueueEmpty
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	}
}

// Drain discards all pending chunks and returns how many were dropped.
// It never blocks.
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
