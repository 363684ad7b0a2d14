package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrEventOverflow is reported when the event buffer is full and an event
// had to be dropped.
var ErrEventOverflow = errors.New("event channel full, dropping event")

// FSNotifyWatcher implements Source using fsnotify.
//
// Directories created under a recursively watched root are picked up
// automatically unless they are skipped.
type FSNotifyWatcher struct {
	mu sync.RWMutex

	watcher *fsnotify.Watcher
	config  Config
	exclude *Exclude

	// roots are the recursively watched directories; paths are every
	// directory or file registered with fsnotify.
	roots map[string]bool
	paths map[string]bool

	events chan Event
	errors chan error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher.
func NewFSNotifyWatcher(opts ...WatcherOption) (*FSNotifyWatcher, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	bufSize := config.BufferSize
	if bufSize <= 0 {
		bufSize = 256
	}

	w := &FSNotifyWatcher{
		watcher: fsw,
		config:  config,
		exclude: NewExclude(config.Exclude),
		roots:   make(map[string]bool),
		paths:   make(map[string]bool),
		events:  make(chan Event, bufSize),
		errors:  make(chan error, bufSize),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Watch starts watching a single path (non-recursively).
func (w *FSNotifyWatcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	return w.add(absPath)
}

func (w *FSNotifyWatcher) add(absPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[absPath] {
		return ErrAlreadyWatching
	}
	if err := w.watcher.Add(absPath); err != nil {
		return err
	}
	w.paths[absPath] = true
	return nil
}

// WatchRecursive watches a directory and all subdirectories that are not
// skipped.
func (w *FSNotifyWatcher) WatchRecursive(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return w.add(absPath)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.roots[absPath] = true
	w.mu.Unlock()

	return w.walk(absPath)
}

func (w *FSNotifyWatcher) walk(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, the root itself is fatal.
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.shouldSkip(p, true) {
			return filepath.SkipDir
		}
		if err := w.add(p); err != nil && !errors.Is(err, ErrAlreadyWatching) {
			if errors.Is(err, ErrWatcherClosed) {
				return err
			}
			w.sendError(err)
		}
		return nil
	})
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// IsWatching returns true if the path is registered with fsnotify.
func (w *FSNotifyWatcher) IsWatching(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paths[absPath]
}

// Close stops the watcher. It is safe to call more than once.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

func (w *FSNotifyWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *FSNotifyWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}

	var isDir bool
	if op.Has(OpCreate) {
		if info, err := os.Stat(fsEvent.Name); err == nil {
			isDir = info.IsDir()
		}
	}

	if w.shouldSkip(fsEvent.Name, isDir) {
		return
	}

	w.sendEvent(Event{
		Path:      fsEvent.Name,
		Op:        op,
		Timestamp: time.Now(),
	})

	// New directories below a recursive root are walked so files created
	// inside them before the watch lands are still covered.
	if isDir && w.underRoot(fsEvent.Name) {
		if err := w.walk(fsEvent.Name); err != nil && !errors.Is(err, ErrWatcherClosed) {
			w.sendError(err)
		}
	}
}

func (w *FSNotifyWatcher) underRoot(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for root := range w.roots {
		if Within(path, root) {
			return true
		}
	}
	return false
}

// shouldSkip matches exclude patterns against the path relative to the root
// that contains it, so a root living below an excluded name still works.
func (w *FSNotifyWatcher) shouldSkip(path string, isDir bool) bool {
	if w.config.Skip != nil && w.config.Skip(path, isDir) {
		return true
	}

	rel := path
	w.mu.RLock()
	for root := range w.roots {
		if Within(path, root) {
			if r, err := filepath.Rel(root, path); err == nil {
				rel = r
			}
			break
		}
	}
	w.mu.RUnlock()

	if rel == "." {
		return false
	}
	return w.exclude.Match(rel)
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

func (w *FSNotifyWatcher) sendEvent(event Event) {
	select {
	case w.events <- event:
	default:
		w.sendError(ErrEventOverflow)
	}
}

// sendError may run on a caller's goroutine during WatchRecursive, so it
// checks closed under the lock that Close takes before closing the channel.
func (w *FSNotifyWatcher) sendError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}
