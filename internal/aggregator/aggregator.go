package aggregator

import (
	"context"
	"sync"

	"github.com/dshills/gitdecor/internal/decoration"
	"github.com/dshills/gitdecor/internal/event"
	"github.com/dshills/gitdecor/internal/logging"
)

// Source exposes a repository's current resource groups.
type Source interface {
	IndexGroup() decoration.ResourceGroup
	WorkingTreeGroup() decoration.ResourceGroup
}

// Trigger subscribes onChange to a repository's change notifications.
type Trigger func(onChange func()) *event.Subscription

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the aggregator's logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTrigger makes the aggregator recompute whenever t fires. The
// subscription is cancelled by Dispose.
func WithTrigger(t Trigger) Option {
	return func(a *Aggregator) {
		a.trigger = t
	}
}

// Aggregator maintains the decoration map of one repository.
type Aggregator struct {
	source  Source
	logger  *logging.Logger
	trigger Trigger

	// recompute serializes rebuild and emit so batches leave in the order
	// their triggering changes arrived.
	recompute sync.Mutex

	mu           sync.RWMutex
	decorations  decorationMap
	disposed     bool
	registration decoration.Registration
	triggerSub   *event.Subscription

	changes event.Emitter[[]string]
}

// New creates an aggregator for source. The map starts empty.
func New(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:      source,
		logger:      logging.Nop(),
		decorations: make(decorationMap),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.trigger != nil {
		sub := a.trigger(a.OnRepositoryChanged)
		a.mu.Lock()
		a.triggerSub = sub
		a.mu.Unlock()
	}
	return a
}

// OnRepositoryChanged rebuilds the decoration map and emits the paths whose
// decoration appeared or disappeared. The batch is emitted even when empty.
func (a *Aggregator) OnRepositoryChanged() {
	a.recompute.Lock()
	defer a.recompute.Unlock()

	if a.isDisposed() {
		return
	}

	next := build(a.source.IndexGroup(), a.source.WorkingTreeGroup())

	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	old := a.decorations
	a.decorations = next
	a.mu.Unlock()

	paths := changed(old, next)
	a.logger.WithFields(map[string]any{
		"decorated": len(next),
		"changed":   len(paths),
	}).Debug("decorations recomputed")

	a.changes.Emit(paths)
}

// ProvideDecoration looks path up in the current map. It never blocks on the
// repository and never triggers a recomputation.
func (a *Aggregator) ProvideDecoration(_ context.Context, path string) (decoration.Decoration, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.decorations[decoration.Key(path)]
	if !ok {
		return decoration.Decoration{}, false, nil
	}
	return e.decoration, true, nil
}

// OnDidChangeDecorations subscribes fn to change batches.
func (a *Aggregator) OnDidChangeDecorations(fn func(paths []string)) *event.Subscription {
	return a.changes.Subscribe(fn)
}

// Snapshot returns a copy of the current map keyed by path.
func (a *Aggregator) Snapshot() map[string]decoration.Decoration {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]decoration.Decoration, len(a.decorations))
	for _, e := range a.decorations {
		out[e.path] = e.decoration
	}
	return out
}

// Len returns the number of decorated paths.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.decorations)
}

// Register attaches the aggregator to sink under scope. The registration is
// released by Dispose.
func (a *Aggregator) Register(sink decoration.Sink, scope string) error {
	reg, err := sink.Register(a, scope)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		reg.Dispose()
		return ErrDisposed
	}
	prev := a.registration
	a.registration = reg
	a.mu.Unlock()

	if prev != nil {
		prev.Dispose()
	}
	return nil
}

// Dispose releases the host registration and the trigger subscription. No
// notifications are emitted afterwards. It is safe to call more than once.
func (a *Aggregator) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	reg := a.registration
	sub := a.triggerSub
	a.registration = nil
	a.triggerSub = nil
	a.mu.Unlock()

	a.changes.Close()
	if sub != nil {
		sub.Cancel()
	}
	if reg != nil {
		reg.Dispose()
	}
}

func (a *Aggregator) isDisposed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.disposed
}

// Ensure Aggregator implements decoration.Provider.
var _ decoration.Provider = (*Aggregator)(nil)
