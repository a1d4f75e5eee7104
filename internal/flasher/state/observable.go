package state

import (
	"sync"
)

// Observable holds a single value and fans updates out to subscribers.
// A new subscriber immediately receives the value current at subscribe
// time, then every subsequent update in publish order. Publishing never
// blocks on slow subscribers; each subscription buffers pending values
// and drains them from its own goroutine.
type Observable[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]*Subscription[T]
	next  int
}

// NewObservable creates an Observable seeded with the given value.
func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{
		value: initial,
		subs:  make(map[int]*Subscription[T]),
	}
}

// Get returns the current value.
func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set publishes a new value to all subscribers.
func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	o.value = v
	for _, s := range o.subs {
		s.push(v)
	}
	o.mu.Unlock()
}

// Subscribe registers a new subscriber. The returned subscription's channel
// yields the current value first. Call Cancel when done.
func (o *Observable[T]) Subscribe() *Subscription[T] {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.next
	o.next++

	s := &Subscription[T]{
		out:  make(chan T),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	s.cancel = func() { o.unsubscribe(id) }
	s.pending = append(s.pending, o.value)
	o.subs[id] = s

	go s.drain()
	return s
}

func (o *Observable[T]) unsubscribe(id int) {
	o.mu.Lock()
	s, ok := o.subs[id]
	if ok {
		delete(o.subs, id)
	}
	o.mu.Unlock()

	if ok {
		s.stop()
	}
}

// Subscription is one subscriber's view of an Observable.
type Subscription[T any] struct {
	mu      sync.Mutex
	pending []T

	out      chan T
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	cancel   func()
}

// C returns the channel delivering published values. It is closed after
// Cancel.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Cancel detaches the subscription. Values not yet consumed are dropped
// and the channel is closed.
func (s *Subscription[T]) Cancel() {
	s.cancel()
}

func (s *Subscription[T]) push(v T) {
	select {
	case <-s.done:
		return
	default:
	}

	s.mu.Lock()
	s.pending = append(s.pending, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Subscription[T]) drain() {
	defer close(s.out)

	for {
		s.mu.Lock()
		var (
			v  T
			ok bool
		)
		if len(s.pending) > 0 {
			v, ok = s.pending[0], true
			s.pending = s.pending[1:]
		}
		s.mu.Unlock()

		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}
