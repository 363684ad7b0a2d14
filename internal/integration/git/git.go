package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/gitdecor/internal/event"
	"github.com/dshills/gitdecor/internal/logging"
)

// StatusCode represents the status of a file in the working tree.
type StatusCode int

const (
	// StatusUnmodified indicates the file is unchanged.
	StatusUnmodified StatusCode = iota
	// StatusModified indicates the file has been modified.
	StatusModified
	// StatusAdded indicates the file is newly added.
	StatusAdded
	// StatusDeleted indicates the file has been deleted.
	StatusDeleted
	// StatusRenamed indicates the file has been renamed.
	StatusRenamed
	// StatusCopied indicates the file has been copied.
	StatusCopied
	// StatusUntracked indicates the file is not tracked by git.
	StatusUntracked
	// StatusConflict indicates a merge conflict.
	StatusConflict
)

// String returns the string representation of a StatusCode.
func (s StatusCode) String() string {
	switch s {
	case StatusUnmodified:
		return "unmodified"
	case StatusModified:
		return "modified"
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusRenamed:
		return "renamed"
	case StatusCopied:
		return "copied"
	case StatusUntracked:
		return "untracked"
	case StatusConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// FileStatus represents the status of a single file in one group.
type FileStatus struct {
	// Path is the file path relative to the repository toplevel, slash separated.
	Path string

	// OldPath is the original path for renamed or copied files.
	OldPath string

	// Status indicates the type of change.
	Status StatusCode

	// Staged is true for index entries.
	Staged bool
}

// Status is one parsed `git status` snapshot.
type Status struct {
	// Branch is the current branch name, empty when detached.
	Branch string

	// HeadCommit is the HEAD commit hash, empty before the first commit.
	HeadCommit string

	// Detached indicates detached HEAD state.
	Detached bool

	// Upstream is the upstream branch name (e.g., "origin/main").
	Upstream string

	// Ahead is the number of commits ahead of upstream.
	Ahead int

	// Behind is the number of commits behind upstream.
	Behind int

	// Index contains staged changes.
	Index []FileStatus

	// WorkingTree contains unstaged changes, untracked files and conflicts.
	WorkingTree []FileStatus
}

// HasChanges returns true if either group has entries.
func (s *Status) HasChanges() bool {
	return len(s.Index) > 0 || len(s.WorkingTree) > 0
}

// Conflicts returns the paths with merge conflicts.
func (s *Status) Conflicts() []string {
	var out []string
	for _, f := range s.WorkingTree {
		if f.Status == StatusConflict {
			out = append(out, f.Path)
		}
	}
	return out
}

// BranchLabel formats the branch for display, e.g. "main [+1 -2]" or
// "(detached at 1a2b3c4)".
func (s *Status) BranchLabel() string {
	if s.Detached {
		head := s.HeadCommit
		if len(head) > 7 {
			head = head[:7]
		}
		return fmt.Sprintf("(detached at %s)", head)
	}
	label := s.Branch
	if s.Ahead > 0 || s.Behind > 0 {
		label += fmt.Sprintf(" [+%d -%d]", s.Ahead, s.Behind)
	}
	return label
}

// ManagerConfig configures a git manager.
type ManagerConfig struct {
	// Logger receives repository diagnostics. Defaults to a no-op logger.
	Logger *logging.Logger
}

// Manager manages open repository sessions.
type Manager struct {
	mu     sync.RWMutex
	repos  map[string]*Repository
	closed atomic.Bool

	logger *logging.Logger

	opened event.Emitter[*Repository]
	closes event.Emitter[*Repository]
}

// NewManager creates a new git manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Manager{
		repos:  make(map[string]*Repository),
		logger: cfg.Logger.WithComponent("git"),
	}
}

// Open opens the repository whose working tree contains path and reads its
// initial status. The session root is path itself, made absolute.
// Opening the same root twice returns the existing session.
func (m *Manager) Open(ctx context.Context, path string) (*Repository, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotRepository)
	}

	m.mu.RLock()
	repo, ok := m.repos[root]
	m.mu.RUnlock()
	if ok {
		return repo, nil
	}

	repo, err = openRepository(ctx, root, m.logger)
	if err != nil {
		return nil, err
	}
	if err := repo.Refresh(ctx); err != nil {
		repo.close()
		return nil, err
	}

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		repo.close()
		return nil, ErrManagerClosed
	}
	if existing, ok := m.repos[root]; ok {
		m.mu.Unlock()
		repo.close()
		return existing, nil
	}
	m.repos[root] = repo
	m.mu.Unlock()

	m.logger.WithFields(map[string]any{"root": root, "session": repo.ID()}).Info("repository opened")
	m.opened.Emit(repo)
	return repo, nil
}

// Discover finds and opens the repository containing the given path.
// It walks up the directory tree looking for a .git entry; the directory
// holding it becomes the session root.
func (m *Manager) Discover(ctx context.Context, path string) (*Repository, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	root, err := discoverRepository(path)
	if err != nil {
		return nil, err
	}
	return m.Open(ctx, root)
}

// IsRepository checks if the path is inside a git repository.
func (m *Manager) IsRepository(path string) bool {
	_, err := discoverRepository(path)
	return err == nil
}

// Get returns the open session for root.
func (m *Manager) Get(root string) (*Repository, bool) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	repo, ok := m.repos[abs]
	return repo, ok
}

// CloseRepository closes the session for root and announces it.
func (m *Manager) CloseRepository(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	m.mu.Lock()
	repo, ok := m.repos[abs]
	if ok {
		delete(m.repos, abs)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", abs, ErrRepositoryNotFound)
	}

	repo.close()
	m.logger.WithFields(map[string]any{"root": abs, "session": repo.ID()}).Info("repository closed")
	m.closes.Emit(repo)
	return nil
}

// Sessions returns every open repository ordered by root.
func (m *Manager) Sessions() []*Repository {
	m.mu.RLock()
	out := make([]*Repository, 0, len(m.repos))
	for _, r := range m.repos {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Root() < out[j].Root() })
	return out
}

// OnSessionOpened subscribes fn to newly opened repositories.
func (m *Manager) OnSessionOpened(fn func(*Repository)) *event.Subscription {
	return m.opened.Subscribe(fn)
}

// OnSessionClosed subscribes fn to closed repositories.
func (m *Manager) OnSessionClosed(fn func(*Repository)) *event.Subscription {
	return m.closes.Subscribe(fn)
}

// Close closes the manager and all open repositories. Each closed session is
// announced before the lifecycle emitters shut down.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	m.mu.Lock()
	repos := make([]*Repository, 0, len(m.repos))
	for _, r := range m.repos {
		repos = append(repos, r)
	}
	m.repos = make(map[string]*Repository)
	m.mu.Unlock()

	sort.Slice(repos, func(i, j int) bool { return repos[i].Root() < repos[j].Root() })
	for _, r := range repos {
		r.close()
		m.closes.Emit(r)
	}

	m.opened.Close()
	m.closes.Close()
	return nil
}

// discoverRepository finds the repository root from any path within it.
func discoverRepository(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}

	current := absPath
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat .git: %w", err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrRepositoryNotFound
		}
		current = parent
	}
}
