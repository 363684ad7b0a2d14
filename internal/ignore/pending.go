package ignore

import (
	"context"
	"sync"
)

// Pending is the result handle of one Query call.
type Pending struct {
	key  string
	done chan struct{}
	once sync.Once

	ignored bool
	err     error

	// superseded holds earlier handles for the same key. They settle together
	// with this handle. Guarded by the owning queue's mutex until dispatch.
	superseded []*Pending
}

func newPending(key string) *Pending {
	return &Pending{key: key, done: make(chan struct{})}
}

// Key returns the normalized path key the query was registered under.
func (p *Pending) Key() string {
	return p.key
}

// Done returns a channel that is closed once the query is settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the query is settled or ctx is done.
func (p *Pending) Wait(ctx context.Context) (bool, error) {
	select {
	case <-p.done:
		return p.ignored, p.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Result returns the outcome without blocking. settled is false while the
// query is still pending.
func (p *Pending) Result() (ignored, settled bool, err error) {
	select {
	case <-p.done:
		return p.ignored, true, p.err
	default:
		return false, false, nil
	}
}

// settle records the outcome once; later calls are ignored.
func (p *Pending) settle(ignored bool, err error) {
	p.once.Do(func() {
		p.ignored = ignored
		p.err = err
		close(p.done)
		for _, s := range p.superseded {
			s.settle(ignored, err)
		}
		p.superseded = nil
	})
}
