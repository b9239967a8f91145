// Package stream provides observable values: a current value plus an
// independent, ordered sequence of subsequent values per subscriber, and
// single-shot waiters that turn those updates into one awaited result.
package stream

import (
	"sync"
)

// Observable is the read-only view of a Stream.
type Observable[T any] interface {
	// Value returns the current value.
	Value() T
	// Subscribe starts delivery of values sent after the call.
	Subscribe() *Subscription[T]
}

// Stream holds a current value and fans out changes to subscribers.
// A value equal to the current one is dropped.
type Stream[T any] struct {
	mu     sync.Mutex
	value  T
	equal  func(a, b T) bool
	subs   map[*Subscription[T]]struct{}
	closed bool
}

var _ Observable[int] = (*Stream[int])(nil)

// New creates a stream starting at initial. equal decides which consecutive
// values are coalesced; nil means never.
func New[T any](initial T, equal func(a, b T) bool) *Stream[T] {
	if equal == nil {
		equal = func(T, T) bool { return false }
	}
	return &Stream[T]{
		value: initial,
		equal: equal,
		subs:  make(map[*Subscription[T]]struct{}),
	}
}

// NewComparable creates a stream coalescing values with ==.
func NewComparable[T comparable](initial T) *Stream[T] {
	return New(initial, func(a, b T) bool { return a == b })
}

func (s *Stream[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Send replaces the current value and notifies subscribers. It reports false
// when v was coalesced or the stream is closed. Send never blocks on
// subscribers.
func (s *Stream[T]) Send(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.equal(s.value, v) {
		return false
	}
	s.value = v
	for sub := range s.subs {
		sub.push(v)
	}
	return true
}

func (s *Stream[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		stream: s,
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		quit:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		sub.ended = true
	} else {
		s.subs[sub] = struct{}{}
	}
	s.mu.Unlock()

	go sub.pump()
	return sub
}

// Close ends every subscription once its pending values are delivered.
// Later sends are dropped.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		sub.end()
		delete(s.subs, sub)
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Stream[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Stream[T]) remove(sub *Subscription[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}

// Subscription delivers a stream's updates in order on C.
type Subscription[T any] struct {
	mu     sync.Mutex
	stream *Stream[T] // nil once cancelled
	queue  []T
	ended  bool

	signal chan struct{}
	out    chan T
	quit   chan struct{}
	once   sync.Once
}

// C yields updates. It is closed after Cancel, or after the stream closes and
// pending values have been received.
func (sub *Subscription[T]) C() <-chan T {
	return sub.out
}

// Cancel stops delivery and detaches from the stream. Idempotent.
func (sub *Subscription[T]) Cancel() {
	sub.once.Do(func() {
		close(sub.quit)

		sub.mu.Lock()
		s := sub.stream
		sub.stream = nil
		sub.queue = nil
		sub.mu.Unlock()

		if s != nil {
			s.remove(sub)
		}
	})
}

func (sub *Subscription[T]) push(v T) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, v)
	sub.mu.Unlock()
	sub.wake()
}

func (sub *Subscription[T]) end() {
	sub.mu.Lock()
	sub.ended = true
	sub.mu.Unlock()
	sub.wake()
}

func (sub *Subscription[T]) wake() {
	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *Subscription[T]) pump() {
	defer close(sub.out)

	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			ended := sub.ended
			sub.mu.Unlock()
			if ended {
				return
			}
			select {
			case <-sub.signal:
				continue
			case <-sub.quit:
				return
			}
		}

		v := sub.queue[0]
		var zero T
		sub.queue[0] = zero
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- v:
		case <-sub.quit:
			return
		}
	}
}
