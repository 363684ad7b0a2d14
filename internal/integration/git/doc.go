// Package git provides the repository sessions gitdecor decorates.
//
// A Manager opens repositories by root path and announces them through
// session opened and closed events. Each open Repository is one session: it
// has a stable UUID, answers batched check-ignore lookups, and exposes its
// last observed status as an index group and a working-tree group of
// decorated resource states.
//
// # Usage
//
//	mgr := git.NewManager(git.ManagerConfig{Logger: logger})
//	defer mgr.Close()
//
//	repo, err := mgr.Open("/path/to/project")
//	if err != nil {
//	    return err
//	}
//
//	// Re-read status and notify operation subscribers.
//	if err := repo.Refresh(ctx); err != nil {
//	    return err
//	}
//
//	ignored, err := repo.CheckIgnored(ctx, []string{"/path/to/project/bin/app"})
//
// # Watching
//
// Watch starts a debounced filesystem watcher over the working tree and the
// .git directory. Every quiet period that saw changes triggers Refresh, and
// changes to .gitignore files are announced separately through
// OnIgnoreFileChanged.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Refreshes of one repository are
// serialized so operation notifications arrive in order.
package git
