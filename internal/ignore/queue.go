package ignore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dshills/gitdecor/internal/decoration"
	"github.com/dshills/gitdecor/internal/event"
	"github.com/dshills/gitdecor/internal/logging"
)

// DefaultQuietPeriod is how long the queue waits without new queries before
// dispatching a batch.
const DefaultQuietPeriod = 500 * time.Millisecond

// Checker answers batched ignore lookups. It returns the subset of paths that
// are ignored.
type Checker interface {
	CheckIgnored(ctx context.Context, paths []string) ([]string, error)
}

// Option configures a Queue.
type Option func(*Queue)

// WithQuietPeriod sets the debounce quiet period. Non-positive values keep the default.
func WithQuietPeriod(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.quiet = d
		}
	}
}

// WithLookupTimeout bounds each batched lookup. Zero disables the timeout.
func WithLookupTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.timeout = d
		}
	}
}

// WithLogger sets the queue's logger.
func WithLogger(l *logging.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// Queue coalesces single-path ignore queries into batched lookups.
type Queue struct {
	checker Checker
	quiet   time.Duration
	timeout time.Duration
	logger  *logging.Logger
	now     func() time.Time

	// ctx is cancelled by Dispose to abandon in-flight lookups.
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	pending      map[string]*Pending
	timer        *time.Timer
	lastQuery    time.Time
	batches      uint64
	disposed     bool
	registration decoration.Registration

	changes event.Emitter[[]string]
}

// New creates a queue that dispatches batches to checker.
func New(checker Checker, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		checker: checker,
		quiet:   DefaultQuietPeriod,
		logger:  logging.Nop(),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*Pending),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Query registers path for the next batch and returns immediately.
// A still pending query for the same key is superseded by the new one. The
// earlier handle is not abandoned: it settles together with the new one,
// with the same outcome.
func (q *Queue) Query(path string) *Pending {
	p := newPending(decoration.Key(path))

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.disposed {
		p.settle(false, ErrDisposed)
		return p
	}

	if prev, ok := q.pending[p.key]; ok {
		p.superseded = append(prev.superseded, prev)
		prev.superseded = nil
	}
	q.pending[p.key] = p
	q.lastQuery = q.now()

	if q.timer == nil {
		q.timer = time.AfterFunc(q.quiet, q.fire)
	} else {
		q.timer.Reset(q.quiet)
	}

	return p
}

// ProvideDecoration queries path and waits for its batch.
func (q *Queue) ProvideDecoration(ctx context.Context, path string) (decoration.Decoration, bool, error) {
	ignored, err := q.Query(path).Wait(ctx)
	if err != nil {
		return decoration.Decoration{}, false, err
	}
	d, ok := decoration.ForIgnored(ignored)
	return d, ok, nil
}

// OnDidChangeDecorations subscribes fn to invalidation batches.
func (q *Queue) OnDidChangeDecorations(fn func(paths []string)) *event.Subscription {
	return q.changes.Subscribe(fn)
}

// Invalidate tells subscribers that the ignore state of paths may have
// changed, e.g. after an ignore file was edited.
func (q *Queue) Invalidate(paths []string) {
	if q.isDisposed() {
		return
	}
	q.changes.Emit(decoration.Keys(paths))
}

// Register attaches the queue to sink under scope. The registration is
// released by Dispose.
func (q *Queue) Register(sink decoration.Sink, scope string) error {
	reg, err := sink.Register(q, scope)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		reg.Dispose()
		return ErrDisposed
	}
	prev := q.registration
	q.registration = reg
	q.mu.Unlock()

	if prev != nil {
		prev.Dispose()
	}
	return nil
}

// Len returns the number of keys waiting for dispatch.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Batches returns the number of batched lookups issued so far.
func (q *Queue) Batches() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.batches
}

// Flush dispatches the pending set immediately in the caller's goroutine.
func (q *Queue) Flush() {
	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
	}
	batch := q.swapLocked()
	q.mu.Unlock()

	q.dispatch(batch)
}

// Dispose releases the host registration and abandons every query that has
// not been settled. It is safe to call more than once.
func (q *Queue) Dispose() {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return
	}
	q.disposed = true
	if q.timer != nil {
		q.timer.Stop()
	}
	abandoned := len(q.pending)
	q.pending = nil
	reg := q.registration
	q.registration = nil
	q.mu.Unlock()

	q.cancel()
	q.changes.Close()
	if reg != nil {
		reg.Dispose()
	}

	if abandoned > 0 {
		q.logger.Debug("disposed with %d pending queries", abandoned)
	}
}

func (q *Queue) isDisposed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.disposed
}

// fire runs on the timer goroutine. It dispatches only after a full quiet
// period without queries and re-arms the timer otherwise.
func (q *Queue) fire() {
	q.mu.Lock()
	if q.disposed || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	if wait := q.quiet - q.now().Sub(q.lastQuery); wait > 0 {
		q.timer.Reset(wait)
		q.mu.Unlock()
		return
	}
	batch := q.swapLocked()
	q.mu.Unlock()

	q.dispatch(batch)
}

// swapLocked hands the pending set to the caller and starts a fresh one.
// Caller must hold q.mu.
func (q *Queue) swapLocked() map[string]*Pending {
	if q.disposed || len(q.pending) == 0 {
		return nil
	}
	batch := q.pending
	q.pending = make(map[string]*Pending)
	q.batches++
	return batch
}

func (q *Queue) dispatch(batch map[string]*Pending) {
	if len(batch) == 0 {
		return
	}

	keys := make([]string, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	start := q.now()
	ignored, err := q.checker.CheckIgnored(ctx, keys)

	if q.ctx.Err() != nil {
		// Disposed while the lookup was in flight.
		q.logger.Debug("dropping result of %d queries after dispose", len(keys))
		return
	}

	if err != nil {
		q.logger.WithField("paths", len(keys)).Error("check ignore failed: %v", err)
		for _, p := range batch {
			p.settle(false, err)
		}
		return
	}

	set := make(map[string]struct{}, len(ignored))
	for _, path := range ignored {
		set[decoration.Key(path)] = struct{}{}
	}
	for k, p := range batch {
		_, ok := set[k]
		p.settle(ok, nil)
	}

	q.logger.WithFields(map[string]any{
		"paths":   len(keys),
		"ignored": len(set),
		"elapsed": q.now().Sub(start),
	}).Debug("check ignore batch resolved")
}

// Ensure Queue implements decoration.Provider.
var _ decoration.Provider = (*Queue)(nil)
