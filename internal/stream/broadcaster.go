// Package stream fans the pipeline's PCM frames out to network listeners:
// WebRTC peers receiving Opus and HTTP clients receiving MP3.
package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// listenerBuffer is about three seconds of 20ms frames.
const listenerBuffer = 150

// Broadcaster fans out PCM frames from one source to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	joined    chan struct{}
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	ID      string
	C       chan []int16
	done    chan struct{}
	dropped atomic.Int64
}

// Dropped returns how many frames were skipped because the listener fell
// behind.
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
		joined:    make(chan struct{}, 1),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		ID:   uuid.NewString(),
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()

	select {
	case b.joined <- struct{}{}:
	default:
	}
	return l
}

// Unsubscribe removes a listener and signals it to stop. It is safe to call
// more than once.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// WaitForListener blocks until at least one listener is subscribed.
func (b *Broadcaster) WaitForListener(ctx context.Context) error {
	for b.ListenerCount() == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.joined:
		}
	}
	return nil
}

// Run reads frames from source and fans out to all listeners.
// Slow listeners get frames dropped rather than blocking the broadcast.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
