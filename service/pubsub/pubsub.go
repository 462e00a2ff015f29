// Package pubsub provides a small typed observer registry used for
// in-process change notification (connection changed, wallet changed).
// Subscribers get their own buffered channel and an explicit unsubscribe
// function, so listener lifecycle is never tied to the publisher.
package pubsub

import (
	"sync"
)

// defaultBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts missing intermediate values; it never blocks
// the publisher.
const defaultBuffer = 8

// Stream is a broadcast channel for values of type T.
// The zero value is ready to use.
type Stream[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]chan T
}

// NewStream creates a new broadcast stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber and returns its receive channel
// along with an unsubscribe function. Calling unsubscribe closes the
// channel and removes the subscriber; it is safe to call more than once.
func (s *Stream[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]chan T)
	}

	id := s.next
	s.next++

	ch := make(chan T, defaultBuffer)
	s.subs[id] = ch

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}

	return ch, unsubscribe
}

// Publish delivers v to every current subscriber. Delivery is best-effort:
// a subscriber whose buffer is full is skipped rather than blocking the
// publisher.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// Subscriber is not keeping up; it misses this value.
		}
	}
}

// Len returns the number of active subscribers.
func (s *Stream[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
