package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/gitdecor/internal/aggregator"
	"github.com/dshills/gitdecor/internal/decoration"
	"github.com/dshills/gitdecor/internal/event"
	"github.com/dshills/gitdecor/internal/ignore"
	"github.com/dshills/gitdecor/internal/logging"
)

// Session is an open repository as seen by the registry.
type Session interface {
	ignore.Checker
	aggregator.Source

	// ID identifies the session for its lifetime.
	ID() string

	// Root is the working tree root; providers are registered under it.
	Root() string

	// OnOperationCompleted subscribes fn to completed repository operations.
	OnOperationCompleted(fn func()) *event.Subscription
}

// SessionManager tracks open sessions.
type SessionManager[S Session] interface {
	Sessions() []S
	OnSessionOpened(fn func(S)) *event.Subscription
	OnSessionClosed(fn func(S)) *event.Subscription
}

// IgnoreFileNotifier is implemented by sessions that can report edits to
// their ignore files. The registry invalidates the session's ignore
// decorations when one fires.
type IgnoreFileNotifier interface {
	OnIgnoreFileChanged(fn func(path string)) *event.Subscription
}

// Providers is the provider pair owned for one session.
type Providers struct {
	Queue      *ignore.Queue
	Aggregator *aggregator.Aggregator

	ignoreSub *event.Subscription
}

func (p *Providers) dispose() {
	if p.ignoreSub != nil {
		p.ignoreSub.Cancel()
	}
	p.Queue.Dispose()
	p.Aggregator.Dispose()
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	logger         *logging.Logger
	queueOpts      []ignore.Option
	aggregatorOpts []aggregator.Option
	enabled        bool
}

// WithLogger sets the registry's logger. Providers derive component loggers from it.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithQueueOptions passes opts to every ignore queue the registry creates.
func WithQueueOptions(opts ...ignore.Option) Option {
	return func(o *options) {
		o.queueOpts = append(o.queueOpts, opts...)
	}
}

// WithAggregatorOptions passes opts to every aggregator the registry creates.
func WithAggregatorOptions(opts ...aggregator.Option) Option {
	return func(o *options) {
		o.aggregatorOpts = append(o.aggregatorOpts, opts...)
	}
}

// WithEnabled sets whether decorations start enabled. Default true.
func WithEnabled(enabled bool) Option {
	return func(o *options) {
		o.enabled = enabled
	}
}

// Registry owns the provider pairs of every open session.
type Registry[S Session] struct {
	manager SessionManager[S]
	sink    decoration.Sink
	opts    options
	logger  *logging.Logger

	mu        sync.Mutex
	providers map[string]*Providers
	binding   map[string]*binding
	enabled   bool
	disposed  bool
	subs      []*event.Subscription
}

// New creates a registry, subscribes to the manager's lifecycle events and
// binds every session that is already open.
func New[S Session](manager SessionManager[S], sink decoration.Sink, opts ...Option) *Registry[S] {
	o := options{logger: logging.Nop(), enabled: true}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry[S]{
		manager:   manager,
		sink:      sink,
		opts:      o,
		logger:    o.logger.WithComponent("registry"),
		providers: make(map[string]*Providers),
		binding:   make(map[string]*binding),
		enabled:   o.enabled,
	}

	opened := manager.OnSessionOpened(r.open)
	closed := manager.OnSessionClosed(r.close)
	r.mu.Lock()
	r.subs = append(r.subs, opened, closed)
	r.mu.Unlock()

	if o.enabled {
		r.bindAll()
	}
	return r
}

// bindAll opens providers for every session currently known to the manager.
func (r *Registry[S]) bindAll() {
	for _, s := range r.manager.Sessions() {
		r.open(s)
	}
}

// binding marks a session whose providers are being built outside the lock.
// A close that arrives meanwhile sets closed so the new pair is released.
type binding struct {
	closed bool
}

func (r *Registry[S]) open(s S) {
	id := s.ID()

	r.mu.Lock()
	if r.disposed || !r.enabled {
		r.mu.Unlock()
		return
	}
	if _, ok := r.providers[id]; ok {
		r.mu.Unlock()
		return
	}
	if b, ok := r.binding[id]; ok {
		// Already being built; a reopen after a racing close keeps it.
		b.closed = false
		r.mu.Unlock()
		return
	}
	b := &binding{}
	r.binding[id] = b
	r.mu.Unlock()

	p, err := r.build(s)

	r.mu.Lock()
	delete(r.binding, id)
	if err != nil {
		r.mu.Unlock()
		r.logger.WithField("root", s.Root()).Error("bind session: %v", err)
		return
	}
	if r.disposed || !r.enabled || b.closed {
		r.mu.Unlock()
		p.dispose()
		return
	}
	r.providers[id] = p
	r.mu.Unlock()

	r.logger.WithFields(map[string]any{"session": id, "root": s.Root()}).Info("decorations bound")

	// Decorate whatever the session already knows about.
	p.Aggregator.OnRepositoryChanged()
}

func (r *Registry[S]) build(s S) (*Providers, error) {
	log := r.opts.logger.WithField("root", s.Root())

	queueOpts := append([]ignore.Option{ignore.WithLogger(log.WithComponent("ignore"))}, r.opts.queueOpts...)
	q := ignore.New(s, queueOpts...)

	aggOpts := append([]aggregator.Option{
		aggregator.WithLogger(log.WithComponent("aggregator")),
		aggregator.WithTrigger(s.OnOperationCompleted),
	}, r.opts.aggregatorOpts...)
	a := aggregator.New(s, aggOpts...)

	p := &Providers{Queue: q, Aggregator: a}

	if err := q.Register(r.sink, s.Root()); err != nil {
		p.dispose()
		return nil, fmt.Errorf("register ignore provider: %w", err)
	}
	if err := a.Register(r.sink, s.Root()); err != nil {
		p.dispose()
		return nil, fmt.Errorf("register status provider: %w", err)
	}

	if n, ok := any(s).(IgnoreFileNotifier); ok {
		root := s.Root()
		p.ignoreSub = n.OnIgnoreFileChanged(func(string) {
			q.Invalidate([]string{root})
		})
	}
	return p, nil
}

func (r *Registry[S]) close(s S) {
	id := s.ID()

	r.mu.Lock()
	if b, building := r.binding[id]; building {
		b.closed = true
	}
	p, ok := r.providers[id]
	if ok {
		delete(r.providers, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	p.dispose()
	r.logger.WithFields(map[string]any{"session": id, "root": s.Root()}).Info("decorations released")
}

// Lookup returns the providers bound to the session with the given ID.
func (r *Registry[S]) Lookup(id string) (*Providers, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns the IDs of every bound session, sorted.
func (r *Registry[S]) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of bound sessions.
func (r *Registry[S]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}

// Enabled reports whether decorations are enabled.
func (r *Registry[S]) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetEnabled turns decorations on or off. Disabling releases every provider
// pair; enabling binds every session that is open at that moment.
func (r *Registry[S]) SetEnabled(enabled bool) error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return ErrDisposed
	}
	if r.enabled == enabled {
		r.mu.Unlock()
		return nil
	}
	r.enabled = enabled

	var released map[string]*Providers
	if !enabled {
		released = r.providers
		r.providers = make(map[string]*Providers)
	}
	r.mu.Unlock()

	if enabled {
		r.logger.Info("decorations enabled")
		r.bindAll()
		return nil
	}

	for _, p := range released {
		p.dispose()
	}
	r.logger.WithField("released", len(released)).Info("decorations disabled")
	return nil
}

// Dispose unsubscribes from the manager and releases every provider pair.
// It is safe to call more than once.
func (r *Registry[S]) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	subs := r.subs
	providers := r.providers
	r.subs = nil
	r.providers = make(map[string]*Providers)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	for _, p := range providers {
		p.dispose()
	}
}
