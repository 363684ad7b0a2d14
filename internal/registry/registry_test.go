package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/gitdecor/internal/decoration"
	"github.com/dshills/gitdecor/internal/event"
	"github.com/dshills/gitdecor/internal/ignore"
)

type fakeSession struct {
	id, root string

	mu      sync.Mutex
	ignored map[string]bool
	work    []decoration.ResourceState
	ops     event.Emitter[struct{}]
}

func newFakeSession(id, root string) *fakeSession {
	return &fakeSession{id: id, root: root, ignored: make(map[string]bool)}
}

func (s *fakeSession) ID() string   { return s.id }
func (s *fakeSession) Root() string { return s.root }

func (s *fakeSession) CheckIgnored(_ context.Context, paths []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range paths {
		if s.ignored[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeSession) IndexGroup() decoration.ResourceGroup {
	return decoration.ResourceGroup{ID: decoration.GroupIndex}
}

func (s *fakeSession) WorkingTreeGroup() decoration.ResourceGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decoration.ResourceGroup{ID: decoration.GroupWorkingTree, States: s.work}
}

func (s *fakeSession) OnOperationCompleted(fn func()) *event.Subscription {
	return s.ops.Subscribe(func(struct{}) { fn() })
}

type fakeManager struct {
	mu       sync.Mutex
	sessions []*fakeSession
	opened   event.Emitter[*fakeSession]
	closed   event.Emitter[*fakeSession]
}

func (m *fakeManager) Sessions() []*fakeSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fakeSession(nil), m.sessions...)
}

func (m *fakeManager) OnSessionOpened(fn func(*fakeSession)) *event.Subscription {
	return m.opened.Subscribe(fn)
}

func (m *fakeManager) OnSessionClosed(fn func(*fakeSession)) *event.Subscription {
	return m.closed.Subscribe(fn)
}

func (m *fakeManager) open(s *fakeSession) {
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
	m.opened.Emit(s)
}

func (m *fakeManager) close(s *fakeSession) {
	m.mu.Lock()
	for i, other := range m.sessions {
		if other == s {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	m.closed.Emit(s)
}

type fakeSink struct {
	mu     sync.Mutex
	active map[string]int
	err    error
}

func newFakeSink() *fakeSink {
	return &fakeSink{active: make(map[string]int)}
}

func (s *fakeSink) Register(_ decoration.Provider, scope string) (decoration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.active[scope]++
	return decoration.NewRegistration(func() {
		s.mu.Lock()
		s.active[scope]--
		s.mu.Unlock()
	}), nil
}

func (s *fakeSink) Active(scope string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[scope]
}

func TestRegistry_BindsSessionsOpenAtStartup(t *testing.T) {
	mgr := &fakeManager{}
	mgr.sessions = []*fakeSession{newFakeSession("a", "/a"), newFakeSession("b", "/b")}
	sink := newFakeSink()

	r := New[*fakeSession](mgr, sink)
	defer r.Dispose()

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	for _, root := range []string{"/a", "/b"} {
		if n := sink.Active(root); n != 2 {
			t.Errorf("scope %s has %d registrations, want 2", root, n)
		}
	}
}

func TestRegistry_OpenAndClose(t *testing.T) {
	mgr := &fakeManager{}
	sink := newFakeSink()
	r := New[*fakeSession](mgr, sink)
	defer r.Dispose()

	s := newFakeSession("s1", "/repo")
	mgr.open(s)

	p, ok := r.Lookup("s1")
	if !ok || p.Queue == nil || p.Aggregator == nil {
		t.Fatalf("Lookup(s1) = %v, %v", p, ok)
	}

	// A duplicate open keeps the existing pair.
	mgr.opened.Emit(s)
	if again, _ := r.Lookup("s1"); again != p {
		t.Error("duplicate open replaced providers")
	}
	if n := sink.Active("/repo"); n != 2 {
		t.Errorf("registrations = %d, want 2", n)
	}

	mgr.close(s)
	if r.Len() != 0 {
		t.Errorf("Len() = %d after close", r.Len())
	}
	if n := sink.Active("/repo"); n != 0 {
		t.Errorf("registrations = %d after close, want 0", n)
	}

	// Closing an unknown session is a no-op.
	mgr.close(newFakeSession("unknown", "/x"))
}

func TestRegistry_AggregatorFollowsOperations(t *testing.T) {
	mgr := &fakeManager{}
	r := New[*fakeSession](mgr, newFakeSink())
	defer r.Dispose()

	s := newFakeSession("s1", "/repo")
	mgr.open(s)
	p, _ := r.Lookup("s1")

	var batches [][]string
	p.Aggregator.OnDidChangeDecorations(func(paths []string) { batches = append(batches, paths) })

	s.mu.Lock()
	s.work = []decoration.ResourceState{{Path: "/repo/a.txt", Decoration: &decoration.Decoration{Priority: 2, Opacity: 1}}}
	s.mu.Unlock()
	s.ops.Emit(struct{}{})

	if len(batches) != 1 || len(batches[0]) != 1 || batches[0][0] != "/repo/a.txt" {
		t.Errorf("batches = %v", batches)
	}

	mgr.close(s)
	s.ops.Emit(struct{}{})
	if len(batches) != 1 {
		t.Error("closed session still emits")
	}
}

func TestRegistry_EndToEndIgnored(t *testing.T) {
	mgr := &fakeManager{}
	r := New[*fakeSession](mgr, newFakeSink(), WithQueueOptions(ignore.WithQuietPeriod(20*time.Millisecond)))
	defer r.Dispose()

	s := newFakeSession("s1", "/repo")
	s.ignored["/repo/a.txt"] = true
	mgr.open(s)
	p, _ := r.Lookup("s1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d, ok, err := p.Queue.ProvideDecoration(ctx, "/repo/a.txt")
	if err != nil || !ok || d.Priority != 3 || d.Opacity != 0.75 {
		t.Errorf("ignored path = %+v, %v, %v", d, ok, err)
	}
	if _, ok, err := p.Queue.ProvideDecoration(ctx, "/repo/b.txt"); err != nil || ok {
		t.Errorf("tracked path decorated: %v, %v", ok, err)
	}
}

func TestRegistry_SetEnabled(t *testing.T) {
	mgr := &fakeManager{}
	mgr.sessions = []*fakeSession{newFakeSession("a", "/a")}
	sink := newFakeSink()

	r := New[*fakeSession](mgr, sink, WithEnabled(false))
	defer r.Dispose()

	if r.Len() != 0 {
		t.Fatalf("disabled registry bound %d sessions", r.Len())
	}
	mgr.open(newFakeSession("b", "/b"))
	if r.Len() != 0 {
		t.Fatal("disabled registry bound an opened session")
	}

	if err := r.SetEnabled(true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if r.Len() != 2 || !r.Enabled() {
		t.Fatalf("Len() = %d after enable, want 2", r.Len())
	}

	if err := r.SetEnabled(false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if r.Len() != 0 || sink.Active("/a") != 0 || sink.Active("/b") != 0 {
		t.Error("disable did not release providers")
	}
}

func TestRegistry_RegisterFailure(t *testing.T) {
	mgr := &fakeManager{}
	mgr.sessions = []*fakeSession{newFakeSession("a", "/a")}
	sink := newFakeSink()
	sink.err = errors.New("host unavailable")

	r := New[*fakeSession](mgr, sink)
	defer r.Dispose()

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed registration", r.Len())
	}
}

func TestRegistry_DisposeIdempotent(t *testing.T) {
	mgr := &fakeManager{}
	mgr.sessions = []*fakeSession{newFakeSession("a", "/a"), newFakeSession("b", "/b")}
	sink := newFakeSink()

	r := New[*fakeSession](mgr, sink)
	r.Dispose()
	r.Dispose()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after dispose", r.Len())
	}
	if sink.Active("/a") != 0 || sink.Active("/b") != 0 {
		t.Error("registrations not released (or released twice)")
	}
	if mgr.opened.Len() != 0 || mgr.closed.Len() != 0 {
		t.Error("manager subscriptions not cancelled")
	}

	mgr.open(newFakeSession("c", "/c"))
	if r.Len() != 0 {
		t.Error("disposed registry bound a session")
	}
	if err := r.SetEnabled(false); !errors.Is(err, ErrDisposed) {
		t.Errorf("SetEnabled after dispose err = %v", err)
	}
}

func TestRegistry_IDs(t *testing.T) {
	mgr := &fakeManager{}
	mgr.sessions = []*fakeSession{newFakeSession("b", "/b"), newFakeSession("a", "/a")}

	r := New[*fakeSession](mgr, newFakeSink())
	defer r.Dispose()

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs() = %v", ids)
	}
}

type notifyingSession struct {
	*fakeSession
	ignoreFiles event.Emitter[string]
}

func (s *notifyingSession) OnIgnoreFileChanged(fn func(string)) *event.Subscription {
	return s.ignoreFiles.Subscribe(fn)
}

type notifyingManager struct {
	sessions []*notifyingSession
	opened   event.Emitter[*notifyingSession]
	closed   event.Emitter[*notifyingSession]
}

func (m *notifyingManager) Sessions() []*notifyingSession { return m.sessions }
func (m *notifyingManager) OnSessionOpened(fn func(*notifyingSession)) *event.Subscription {
	return m.opened.Subscribe(fn)
}
func (m *notifyingManager) OnSessionClosed(fn func(*notifyingSession)) *event.Subscription {
	return m.closed.Subscribe(fn)
}

func TestRegistry_IgnoreFileChangeInvalidatesRoot(t *testing.T) {
	s := &notifyingSession{fakeSession: newFakeSession("s1", "/repo")}
	mgr := &notifyingManager{sessions: []*notifyingSession{s}}
	r := New[*notifyingSession](mgr, newFakeSink())
	defer r.Dispose()

	p, ok := r.Lookup("s1")
	if !ok {
		t.Fatal("session not bound")
	}

	var batches [][]string
	p.Queue.OnDidChangeDecorations(func(paths []string) { batches = append(batches, paths) })

	s.ignoreFiles.Emit("/repo/.gitignore")
	if len(batches) != 1 || len(batches[0]) != 1 || batches[0][0] != "/repo" {
		t.Fatalf("batches = %v, want [[/repo]]", batches)
	}

	mgr.closed.Emit(s)
	s.ignoreFiles.Emit("/repo/.gitignore")
	if len(batches) != 1 {
		t.Errorf("invalidation delivered after close: %v", batches)
	}
	if s.ignoreFiles.Len() != 0 {
		t.Errorf("ignore-file subscription not cancelled, %d remain", s.ignoreFiles.Len())
	}
}

// gatedSink blocks its first Register until release is closed.
type gatedSink struct {
	*fakeSink
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedSink() *gatedSink {
	return &gatedSink{
		fakeSink: newFakeSink(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (s *gatedSink) Register(p decoration.Provider, scope string) (decoration.Registration, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.fakeSink.Register(p, scope)
}

func TestRegistry_CloseDuringBindReleasesProviders(t *testing.T) {
	mgr := &fakeManager{}
	sink := newGatedSink()
	r := New[*fakeSession](mgr, sink)
	defer r.Dispose()

	s := newFakeSession("a", "/a")
	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.open(s)
	}()

	<-sink.entered
	mgr.close(s)
	close(sink.release)
	<-done

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 for a session closed while binding", r.Len())
	}
	if n := sink.Active("/a"); n != 0 {
		t.Errorf("active registrations = %d, want 0", n)
	}
}

func TestRegistry_ConcurrentOpenBindsOnce(t *testing.T) {
	mgr := &fakeManager{}
	sink := newGatedSink()
	r := New[*fakeSession](mgr, sink)
	defer r.Dispose()

	s := newFakeSession("a", "/a")
	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.open(s)
	}()

	<-sink.entered
	mgr.opened.Emit(s)
	close(sink.release)
	<-done

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	// One ignore queue plus one aggregator.
	if n := sink.Active("/a"); n != 2 {
		t.Errorf("active registrations = %d, want 2", n)
	}
}

func TestRegistry_ReopenDuringBindKeepsProviders(t *testing.T) {
	mgr := &fakeManager{}
	sink := newGatedSink()
	r := New[*fakeSession](mgr, sink)
	defer r.Dispose()

	s := newFakeSession("a", "/a")
	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.open(s)
	}()

	<-sink.entered
	mgr.close(s)
	mgr.open(s)
	close(sink.release)
	<-done

	if _, ok := r.Lookup("a"); !ok {
		t.Fatal("reopened session not bound")
	}
	if n := sink.Active("/a"); n != 2 {
		t.Errorf("active registrations = %d, want 2", n)
	}
}
