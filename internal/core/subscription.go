package core

import "sync"

// Subscription is the cancellation token returned by Observable.Subscribe.
type Subscription interface {
	// Release stops delivery. Once Release returns the callback is never
	// invoked again; if a delivery is in flight on another goroutine,
	// Release waits for it. Release is idempotent. It must not be called
	// from inside the subscription's own callback.
	Release()
}

// Observable fans values out to callbacks in registration order.
// The zero value is ready to use.
type Observable[T any] struct {
	mu   sync.RWMutex
	subs []*subscriber[T]
}

type subscriber[T any] struct {
	mu       sync.RWMutex
	fn       func(T)
	released bool
	owner    *Observable[T]
}

// Subscribe registers fn and returns its cancellation token.
func (o *Observable[T]) Subscribe(fn func(T)) Subscription {
	s := &subscriber[T]{fn: fn, owner: o}
	o.mu.Lock()
	o.subs = append(o.subs, s)
	o.mu.Unlock()
	return s
}

// Publish delivers v to every live subscriber.
func (o *Observable[T]) Publish(v T) {
	o.mu.RLock()
	subs := make([]*subscriber[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.RUnlock()

	for _, s := range subs {
		s.deliver(v)
	}
}

// Len returns the number of live subscribers.
func (o *Observable[T]) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

func (s *subscriber[T]) deliver(v T) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return
	}
	s.fn(v)
}

func (s *subscriber[T]) Release() {
	s.mu.Lock()
	already := s.released
	s.released = true
	s.mu.Unlock()
	if already {
		return
	}

	o := s.owner
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, other := range o.subs {
		if other == s {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			break
		}
	}
}
