package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/gitdecor/internal/decoration"
	"github.com/dshills/gitdecor/internal/event"
	"github.com/dshills/gitdecor/internal/logging"
)

// Errors returned by the sink.
var (
	ErrClosed      = errors.New("decoration sink closed")
	ErrNilProvider = errors.New("nil decoration provider")
)

// Change is one batch of paths whose decorations may have changed.
type Change struct {
	// Scope is the scope the reporting provider registered under.
	Scope string

	// Paths are the changed path keys.
	Paths []string
}

type registered struct {
	id       uint64
	provider decoration.Provider
	scope    string
	sub      *event.Subscription
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the sink's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// Sink implements decoration.Sink.
type Sink struct {
	logger *logging.Logger

	mu      sync.RWMutex
	entries map[uint64]*registered
	nextID  uint64
	closed  bool

	changes event.Emitter[Change]
}

// New creates an empty sink.
func New(opts ...Option) *Sink {
	s := &Sink{
		logger:  logging.Nop(),
		entries: make(map[uint64]*registered),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("host")
	return s
}

// Register attaches p under scope. The returned registration detaches it.
func (s *Sink) Register(p decoration.Provider, scope string) (decoration.Registration, error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	scope = decoration.Key(scope)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.nextID++
	r := &registered{id: s.nextID, provider: p, scope: scope}
	s.entries[r.id] = r
	s.mu.Unlock()

	// Subscribing outside the lock lets a provider emit from inside
	// OnDidChangeDecorations without deadlocking.
	sub := p.OnDidChangeDecorations(func(paths []string) {
		s.changes.Emit(Change{Scope: scope, Paths: paths})
	})

	s.mu.Lock()
	if _, ok := s.entries[r.id]; !ok || s.closed {
		s.mu.Unlock()
		sub.Cancel()
		return nil, ErrClosed
	}
	r.sub = sub
	s.mu.Unlock()

	s.logger.WithField("scope", scope).Debug("provider registered")
	return decoration.NewRegistration(func() { s.unregister(r.id) }), nil
}

func (s *Sink) unregister(id uint64) {
	s.mu.Lock()
	r, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	if r.sub != nil {
		r.sub.Cancel()
	}
	s.logger.WithField("scope", r.scope).Debug("provider released")
}

// OnDidChangeDecorations subscribes fn to change batches from every provider.
func (s *Sink) OnDidChangeDecorations(fn func(Change)) *event.Subscription {
	return s.changes.Subscribe(fn)
}

// Len returns the number of live registrations.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Scopes returns the distinct registered scopes, sorted.
func (s *Sink) Scopes() []string {
	s.mu.RLock()
	seen := make(map[string]struct{}, len(s.entries))
	for _, r := range s.entries {
		seen[r.scope] = struct{}{}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for scope := range seen {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// providersFor returns the providers whose scope contains key.
func (s *Sink) providersFor(key string) []decoration.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint64, 0, len(s.entries))
	for id, r := range s.entries {
		if decoration.Within(key, r.scope) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]decoration.Provider, len(ids))
	for i, id := range ids {
		out[i] = s.entries[id].provider
	}
	return out
}

// Decorate returns the highest-priority decoration any provider in scope
// gives path. Providers are asked concurrently. Provider errors are returned
// only when no provider produced a decoration.
func (s *Sink) Decorate(ctx context.Context, path string) (decoration.Decoration, bool, error) {
	if s.isClosed() {
		return decoration.Decoration{}, false, ErrClosed
	}

	key := decoration.Key(path)
	providers := s.providersFor(key)
	if len(providers) == 0 {
		return decoration.Decoration{}, false, nil
	}

	type answer struct {
		d   decoration.Decoration
		ok  bool
		err error
	}
	answers := make([]answer, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			d, ok, err := p.ProvideDecoration(ctx, key)
			answers[i] = answer{d, ok, err}
			return nil
		})
	}
	_ = g.Wait()

	var (
		best  decoration.Decoration
		found bool
		errs  []error
	)
	for _, a := range answers {
		if a.err != nil {
			errs = append(errs, a.err)
			continue
		}
		if a.ok && (!found || decoration.Higher(a.d, best)) {
			best, found = a.d, true
		}
	}
	if found {
		return best, true, nil
	}
	if err := errors.Join(errs...); err != nil {
		return decoration.Decoration{}, false, fmt.Errorf("decorate %s: %w", key, err)
	}
	return decoration.Decoration{}, false, nil
}

// Result is the outcome of decorating one path with DecorateAll.
type Result struct {
	Path       string
	Decoration decoration.Decoration
	OK         bool
	Err        error
}

// DecorateAll decorates every path concurrently, so lookups that providers
// coalesce are issued together. Results keep the order of paths.
func (s *Sink) DecorateAll(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))

	var g errgroup.Group
	for i, p := range paths {
		g.Go(func() error {
			d, ok, err := s.Decorate(ctx, p)
			results[i] = Result{Path: p, Decoration: d, OK: ok, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Sink) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close detaches every provider and stops forwarding changes. Registrations
// released afterwards are no-ops.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	entries := s.entries
	s.entries = make(map[uint64]*registered)
	s.mu.Unlock()

	for _, r := range entries {
		if r.sub != nil {
			r.sub.Cancel()
		}
	}
	s.changes.Close()
}
