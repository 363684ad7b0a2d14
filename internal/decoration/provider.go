package decoration

import (
	"context"
	"sync"

	"github.com/dshills/gitdecor/internal/event"
)

// Provider supplies decorations to a host.
type Provider interface {
	// ProvideDecoration returns the decoration for path. The boolean is false
	// when the path carries none. Implementations may block until ctx is done.
	ProvideDecoration(ctx context.Context, path string) (Decoration, bool, error)

	// OnDidChangeDecorations subscribes fn to batches of paths whose
	// decorations should be requested again.
	OnDidChangeDecorations(fn func(paths []string)) *event.Subscription
}

// Registration releases a provider registration. Dispose must be idempotent.
type Registration interface {
	Dispose()
}

// Sink is the host side of decoration providers.
type Sink interface {
	// Register attaches p to the host for paths under scope.
	Register(p Provider, scope string) (Registration, error)
}

// NewRegistration returns a Registration that runs release at most once.
func NewRegistration(release func()) Registration {
	return &registration{release: release}
}

type registration struct {
	once    sync.Once
	release func()
}

func (r *registration) Dispose() {
	r.once.Do(func() {
		if r.release != nil {
			r.release()
		}
	})
}
