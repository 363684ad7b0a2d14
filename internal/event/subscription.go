package event

import "sync/atomic"

// SubscriptionState represents the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription is receiving events.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStatePaused means the subscription is temporarily not receiving events.
	SubscriptionStatePaused

	// SubscriptionStateCancelled means the subscription has been permanently cancelled.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStatePaused:
		return "paused"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Subscription is the handle returned by Emitter.Subscribe.
// Cancel is idempotent and safe to call from inside the handler.
type Subscription struct {
	id     uint64
	state  atomic.Int32
	detach func(*Subscription)
}

func newSubscription(id uint64, detach func(*Subscription)) *Subscription {
	s := &Subscription{id: id, detach: detach}
	s.state.Store(int32(SubscriptionStateActive))
	return s
}

// ID returns the subscription identifier, unique within its emitter.
func (s *Subscription) ID() uint64 {
	return s.id
}

// State returns the current subscription state.
func (s *Subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// IsActive returns true if the subscription receives events.
func (s *Subscription) IsActive() bool {
	return s.State() == SubscriptionStateActive
}

// Pause temporarily stops event delivery.
func (s *Subscription) Pause() {
	s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStatePaused))
}

// Resume restarts event delivery after a pause.
func (s *Subscription) Resume() {
	s.state.CompareAndSwap(int32(SubscriptionStatePaused), int32(SubscriptionStateActive))
}

// Cancel permanently cancels the subscription and detaches it from its emitter.
func (s *Subscription) Cancel() {
	if SubscriptionState(s.state.Swap(int32(SubscriptionStateCancelled))) == SubscriptionStateCancelled {
		return
	}
	if s.detach != nil {
		s.detach(s)
	}
}

// Dispose is an alias for Cancel so a Subscription can be released alongside
// other disposable resources.
func (s *Subscription) Dispose() {
	s.Cancel()
}
