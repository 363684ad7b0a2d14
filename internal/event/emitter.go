package event

import (
	"runtime/debug"
	"sync"
)

// PanicHandler receives panics recovered from subscribers.
type PanicHandler func(err *PanicError)

// Emitter is an ordered, synchronous publish/subscribe primitive.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu      sync.Mutex
	subs    []*entry[T]
	nextID  uint64
	closed  bool
	onPanic PanicHandler
}

type entry[T any] struct {
	sub *Subscription
	fn  func(T)
}

// NewEmitter creates an emitter that reports subscriber panics to onPanic.
func NewEmitter[T any](onPanic PanicHandler) *Emitter[T] {
	return &Emitter[T]{onPanic: onPanic}
}

// Subscribe registers fn to receive every subsequently emitted value.
// Subscribing to a closed emitter returns an already cancelled subscription.
func (e *Emitter[T]) Subscribe(fn func(T)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	sub := newSubscription(e.nextID, e.detach)
	if e.closed || fn == nil {
		sub.state.Store(int32(SubscriptionStateCancelled))
		return sub
	}

	e.subs = append(e.subs, &entry[T]{sub: sub, fn: fn})
	return sub
}

// Emit delivers v to every active subscriber in subscription order and
// returns the number of subscribers that received it.
// Subscribers added or cancelled during delivery take effect from the next Emit.
func (e *Emitter[T]) Emit(v T) int {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0
	}
	snapshot := make([]*entry[T], len(e.subs))
	copy(snapshot, e.subs)
	onPanic := e.onPanic
	e.mu.Unlock()

	delivered := 0
	for _, en := range snapshot {
		if !en.sub.IsActive() {
			continue
		}
		if e.deliver(en, v, onPanic) {
			delivered++
		}
	}
	return delivered
}

func (e *Emitter[T]) deliver(en *entry[T], v T, onPanic PanicHandler) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if onPanic != nil {
				onPanic(&PanicError{
					SubscriptionID: en.sub.id,
					Value:          r,
					Stack:          string(debug.Stack()),
				})
			}
		}
	}()
	en.fn(v)
	return true
}

// Len returns the number of subscriptions that have not been cancelled.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Close cancels every subscription. Later Emit calls are no-ops.
func (e *Emitter[T]) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()

	for _, en := range subs {
		en.sub.state.Store(int32(SubscriptionStateCancelled))
	}
}

// detach removes sub from the subscriber list.
func (e *Emitter[T]) detach(sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, en := range e.subs {
		if en.sub == sub {
			e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
			return
		}
	}
}
