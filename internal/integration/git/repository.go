package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/gitdecor/internal/decoration"
	"github.com/dshills/gitdecor/internal/event"
	"github.com/dshills/gitdecor/internal/logging"
)

// OperationKind names a repository operation.
type OperationKind string

// OperationStatus is the status refresh run by Refresh.
const OperationStatus OperationKind = "status"

// Operation describes one completed repository operation.
type Operation struct {
	Kind     OperationKind
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Repository is one open repository session.
type Repository struct {
	id       string
	root     string
	toplevel string
	gitDir   string
	// prefix is root relative to toplevel, slash separated, "" when equal.
	prefix string

	logger *logging.Logger

	refreshMu sync.Mutex

	mu     sync.RWMutex
	status *Status
	index  decoration.ResourceGroup
	work   decoration.ResourceGroup
	closed bool
	stop   func()

	operations  event.Emitter[Operation]
	ignoreFiles event.Emitter[string]
}

// openRepository resolves the working tree and git directory that contain
// root.
func openRepository(ctx context.Context, root string, logger *logging.Logger) (*Repository, error) {
	out, err := runGit(ctx, root, nil, "rev-parse", "--show-toplevel", "--absolute-git-dir")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 128 {
			return nil, fmt.Errorf("%s: %w", root, ErrNotRepository)
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 || lines[0] == "" {
		// Bare repositories report no toplevel.
		return nil, fmt.Errorf("%s: %w", root, ErrNotRepository)
	}
	toplevel := filepath.FromSlash(strings.TrimSpace(lines[0]))
	gitDir := filepath.FromSlash(strings.TrimSpace(lines[1]))

	prefix := ""
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		if rel, ok := below(resolved, toplevel); ok && rel != "." {
			prefix = filepath.ToSlash(rel)
		}
	}

	id := uuid.NewString()
	return &Repository{
		id:       id,
		root:     root,
		toplevel: toplevel,
		gitDir:   gitDir,
		prefix:   prefix,
		logger:   logger.WithFields(map[string]any{"root": root, "session": id}),
		index:    decoration.ResourceGroup{ID: decoration.GroupIndex},
		work:     decoration.ResourceGroup{ID: decoration.GroupWorkingTree},
	}, nil
}

// ID returns the session's UUID.
func (r *Repository) ID() string {
	return r.id
}

// Root returns the session root as opened.
func (r *Repository) Root() string {
	return r.root
}

// Toplevel returns the working tree root reported by git.
func (r *Repository) Toplevel() string {
	return r.toplevel
}

// GitDir returns the absolute git directory.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// Status returns the last observed status, or nil before the first refresh.
func (r *Repository) Status() *Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// IndexGroup returns the staged changes as decorated resource states.
func (r *Repository) IndexGroup() decoration.ResourceGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index
}

// WorkingTreeGroup returns unstaged changes, untracked files and conflicts
// as decorated resource states.
func (r *Repository) WorkingTreeGroup() decoration.ResourceGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.work
}

// OnOperation subscribes fn to every completed operation.
func (r *Repository) OnOperation(fn func(Operation)) *event.Subscription {
	return r.operations.Subscribe(fn)
}

// OnOperationCompleted subscribes fn to every completed operation.
func (r *Repository) OnOperationCompleted(fn func()) *event.Subscription {
	return r.operations.Subscribe(func(Operation) { fn() })
}

// OnIgnoreFileChanged subscribes fn to edits of .gitignore files and
// info/exclude seen by Watch.
func (r *Repository) OnIgnoreFileChanged(fn func(path string)) *event.Subscription {
	return r.ignoreFiles.Subscribe(fn)
}

// Refresh re-reads the repository status and replaces both resource groups.
// The operation is announced whether or not it succeeded.
func (r *Repository) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	if r.isClosed() {
		return ErrRepositoryClosed
	}

	started := time.Now()
	status, err := r.readStatus(ctx)
	if err == nil {
		index, work := r.groups(status)
		r.mu.Lock()
		if r.closed {
			err = ErrRepositoryClosed
		} else {
			r.status = status
			r.index = index
			r.work = work
		}
		r.mu.Unlock()
	}

	op := Operation{Kind: OperationStatus, Started: started, Duration: time.Since(started), Err: err}
	if err != nil {
		r.logger.Warn("status refresh failed: %v", err)
	} else {
		r.logger.WithField("duration", op.Duration).Debug("status refreshed")
	}
	r.operations.Emit(op)
	return err
}

func (r *Repository) readStatus(ctx context.Context) (*Status, error) {
	out, err := runGit(ctx, r.toplevel, nil,
		"status", "--porcelain=v2", "--branch", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	return parseStatus(out)
}

// CheckIgnored returns the subset of paths git ignores. Paths outside the
// working tree are never ignored. Results use the caller's spelling.
func (r *Repository) CheckIgnored(ctx context.Context, paths []string) ([]string, error) {
	if r.isClosed() {
		return nil, ErrRepositoryClosed
	}

	byRel := make(map[string][]string, len(paths))
	var stdin bytes.Buffer
	for _, p := range paths {
		rel, ok := r.relative(p)
		if !ok {
			continue
		}
		if _, seen := byRel[rel]; !seen {
			stdin.WriteString(rel)
			stdin.WriteByte(0)
		}
		byRel[rel] = append(byRel[rel], p)
	}
	if len(byRel) == 0 {
		return nil, nil
	}

	out, err := runGit(ctx, r.toplevel, &stdin, "check-ignore", "-z", "--stdin")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
			// Exit status 1 means none of the paths are ignored.
			return nil, nil
		}
		return nil, err
	}

	var ignored []string
	for _, rel := range strings.Split(string(out), "\x00") {
		if rel == "" {
			continue
		}
		ignored = append(ignored, byRel[rel]...)
	}
	return ignored, nil
}

// relative maps an absolute path to its toplevel-relative slash path.
func (r *Repository) relative(p string) (string, bool) {
	if !filepath.IsAbs(p) {
		return "", false
	}
	p = filepath.Clean(p)
	if _, inGitDir := below(p, r.gitDir); inGitDir {
		return "", false
	}

	if rel, ok := below(p, r.root); ok {
		if rel == "." {
			if r.prefix == "" {
				return "", false
			}
			return r.prefix, true
		}
		return joinSlash(r.prefix, filepath.ToSlash(rel)), true
	}
	if rel, ok := below(p, r.toplevel); ok && rel != "." {
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// absolute returns the path for a toplevel-relative slash path, spelled
// under root when it lies there.
func (r *Repository) absolute(rel string) string {
	if r.prefix == "" {
		return filepath.Join(r.root, filepath.FromSlash(rel))
	}
	if rel == r.prefix {
		return r.root
	}
	if strings.HasPrefix(rel, r.prefix+"/") {
		return filepath.Join(r.root, filepath.FromSlash(rel[len(r.prefix)+1:]))
	}
	return filepath.Join(r.toplevel, filepath.FromSlash(rel))
}

func (r *Repository) toplevelPath(rel string) string {
	return filepath.Join(r.toplevel, filepath.FromSlash(rel))
}

func below(p, dir string) (string, bool) {
	rel, err := filepath.Rel(dir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func joinSlash(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

func (r *Repository) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// close stops any watcher and shuts down the session's emitters.
func (r *Repository) close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	stop := r.stop
	r.stop = nil
	r.mu.Unlock()

	if stop != nil {
		stop()
	}

	r.operations.Close()
	r.ignoreFiles.Close()
}

// runGit executes git in dir. Optional locks are disabled so that status
// never rewrites the index while an editor or another git process works.
func runGit(ctx context.Context, dir string, stdin *bytes.Buffer, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), "GIT_OPTIONAL_LOCKS=0", "LC_ALL=C")
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cmdErr := &CommandError{Args: args, ExitCode: -1, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			cmdErr.Err = ctx.Err()
		case errors.Is(err, exec.ErrNotFound):
			cmdErr.Err = ErrGitNotFound
		case errors.As(err, &exitErr):
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		return nil, cmdErr
	}

	return stdout.Bytes(), nil
}
