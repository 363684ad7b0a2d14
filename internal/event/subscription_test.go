package event

import "testing"

func TestSubscriptionState_String(t *testing.T) {
	tests := []struct {
		state    SubscriptionState
		expected string
	}{
		{SubscriptionStateActive, "active"},
		{SubscriptionStatePaused, "paused"},
		{SubscriptionStateCancelled, "cancelled"},
		{SubscriptionState(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("SubscriptionState.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSubscription_PauseResume(t *testing.T) {
	var e Emitter[int]
	var got []int
	sub := e.Subscribe(func(v int) { got = append(got, v) })

	e.Emit(1)
	sub.Pause()
	if sub.IsActive() {
		t.Error("expected paused subscription to be inactive")
	}
	e.Emit(2)
	sub.Resume()
	e.Emit(3)

	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("got %v, want [1 3]", got)
	}
}

func TestSubscription_CancelIdempotent(t *testing.T) {
	var e Emitter[int]
	calls := 0
	sub := e.Subscribe(func(int) { calls++ })

	sub.Cancel()
	sub.Cancel()
	sub.Dispose()

	if sub.State() != SubscriptionStateCancelled {
		t.Errorf("state = %v, want cancelled", sub.State())
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}
	e.Emit(1)
	if calls != 0 {
		t.Errorf("cancelled subscription received %d events", calls)
	}

	// Resume must not revive a cancelled subscription.
	sub.Resume()
	if sub.IsActive() {
		t.Error("cancelled subscription became active")
	}
}
