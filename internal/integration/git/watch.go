package git

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/gitdecor/internal/project/watcher"
)

// WatchConfig configures Repository.Watch.
type WatchConfig struct {
	// Debounce is the quiet period after the last change before a refresh.
	// Defaults to watcher.DefaultBatchDelay.
	Debounce time.Duration

	// Exclude holds glob patterns for working-tree paths that never trigger
	// a refresh, e.g. "node_modules".
	Exclude []string
}

// Watch refreshes the repository whenever its working tree or git directory
// changes. Calling Watch on a watched repository is a no-op. The watcher
// stops when the repository is closed or StopWatching is called.
func (r *Repository) Watch(cfg WatchConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRepositoryClosed
	}
	if r.stop != nil {
		return nil
	}

	gitDir := r.gitDir
	fsw, err := watcher.NewFSNotifyWatcher(
		watcher.WithExclude(cfg.Exclude...),
		watcher.WithSkip(func(p string, isDir bool) bool {
			// The git directory itself is watched for index and HEAD writes,
			// its object and ref trees are not.
			return isDir && p != gitDir && watcher.Within(p, gitDir)
		}),
	)
	if err != nil {
		return err
	}

	if err := fsw.WatchRecursive(r.root); err != nil {
		_ = fsw.Close()
		return err
	}
	if !watcher.Within(gitDir, r.root) {
		if err := fsw.Watch(gitDir); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	// info/exclude lives one level down and is an ignore source.
	if info := filepath.Join(gitDir, "info"); fsw.Watch(info) != nil {
		r.logger.Debug("not watching %s", info)
	}

	batcher := watcher.NewBatcher(fsw, cfg.Debounce)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.watchLoop(ctx, batcher)
	}()

	r.stop = func() {
		cancel()
		_ = batcher.Close()
		<-done
	}
	r.logger.Info("watching working tree")
	return nil
}

// StopWatching stops a watcher started by Watch.
func (r *Repository) StopWatching() {
	r.mu.Lock()
	stop := r.stop
	r.stop = nil
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// IsWatching reports whether Watch is active.
func (r *Repository) IsWatching() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stop != nil
}

func (r *Repository) watchLoop(ctx context.Context, b *watcher.Batcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case batch, ok := <-b.Batches():
			if !ok {
				return
			}
			ignoreFiles, refresh := r.classify(batch)
			for _, p := range ignoreFiles {
				r.ignoreFiles.Emit(p)
			}
			if refresh {
				_ = r.Refresh(ctx)
			}

		case err, ok := <-b.Errors():
			if !ok {
				return
			}
			r.logger.Warn("watcher: %v", err)
		}
	}
}

// classify picks out ignore-file edits and decides whether the batch is
// worth a status refresh. Batches that only touch git lock files are not.
func (r *Repository) classify(batch []watcher.Event) (ignoreFiles []string, refresh bool) {
	exclude := filepath.Join(r.gitDir, "info", "exclude")
	for _, ev := range batch {
		if filepath.Base(ev.Path) == ".gitignore" || ev.Path == exclude {
			ignoreFiles = append(ignoreFiles, ev.Path)
		}
		if watcher.Within(ev.Path, r.gitDir) && strings.HasSuffix(ev.Path, ".lock") {
			continue
		}
		refresh = true
	}
	return ignoreFiles, refresh
}
