package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// testRepo creates an initialized repository in a temp dir and returns its
// symlink-resolved root.
func testRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	gitCmd(t, dir, "init", "-q", "-b", "main")
	gitCmd(t, dir, "config", "user.email", "test@example.com")
	gitCmd(t, dir, "config", "user.name", "Test")
	gitCmd(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func createFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestManager_OpenAnnouncesSession(t *testing.T) {
	dir := testRepo(t)
	mgr := NewManager(ManagerConfig{})
	defer mgr.Close()

	var opened []*Repository
	mgr.OnSessionOpened(func(r *Repository) { opened = append(opened, r) })

	repo, err := mgr.Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	if repo.Root() != dir || repo.Toplevel() != dir {
		t.Errorf("root/toplevel = %q/%q, want %q", repo.Root(), repo.Toplevel(), dir)
	}
	if repo.GitDir() != filepath.Join(dir, ".git") {
		t.Errorf("GitDir = %q", repo.GitDir())
	}
	if repo.ID() == "" {
		t.Error("empty session ID")
	}
	if repo.Status() == nil {
		t.Error("Status nil after Open")
	}
	if len(opened) != 1 || opened[0] != repo {
		t.Errorf("opened events = %v", opened)
	}

	again, err := mgr.Open(context.Background(), dir)
	if err != nil || again != repo {
		t.Errorf("second Open = %v, %v; want same session", again, err)
	}
	if len(opened) != 1 {
		t.Errorf("second Open announced again")
	}
	if got, ok := mgr.Get(dir); !ok || got != repo {
		t.Errorf("Get = %v, %v", got, ok)
	}
}

func TestManager_OpenNotRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	mgr := NewManager(ManagerConfig{})
	defer mgr.Close()

	dir := t.TempDir()
	// Keep git from finding a repository above the temp dir.
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	if _, err := mgr.Open(context.Background(), dir); !errors.Is(err, ErrNotRepository) {
		t.Errorf("Open error = %v, want ErrNotRepository", err)
	}
	if _, err := mgr.Open(context.Background(), filepath.Join(dir, "missing")); !errors.Is(err, ErrNotRepository) {
		t.Errorf("Open(missing) error = %v, want ErrNotRepository", err)
	}
}

func TestManager_DiscoverAndIsRepository(t *testing.T) {
	dir := testRepo(t)
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(ManagerConfig{})
	defer mgr.Close()

	if !mgr.IsRepository(sub) {
		t.Error("IsRepository(sub) = false")
	}
	repo, err := mgr.Discover(context.Background(), sub)
	if err != nil {
		t.Fatalf("Discover error = %v", err)
	}
	if repo.Root() != dir {
		t.Errorf("Discover root = %q, want %q", repo.Root(), dir)
	}
}

func TestManager_CloseRepository(t *testing.T) {
	dir := testRepo(t)
	mgr := NewManager(ManagerConfig{})
	defer mgr.Close()

	repo, err := mgr.Open(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}

	var closed []*Repository
	mgr.OnSessionClosed(func(r *Repository) { closed = append(closed, r) })

	if err := mgr.CloseRepository(dir); err != nil {
		t.Fatalf("CloseRepository error = %v", err)
	}
	if len(closed) != 1 || closed[0] != repo {
		t.Errorf("closed events = %v", closed)
	}
	if len(mgr.Sessions()) != 0 {
		t.Errorf("Sessions after close = %v", mgr.Sessions())
	}
	if err := mgr.CloseRepository(dir); !errors.Is(err, ErrRepositoryNotFound) {
		t.Errorf("second CloseRepository error = %v", err)
	}
	if err := repo.Refresh(context.Background()); !errors.Is(err, ErrRepositoryClosed) {
		t.Errorf("Refresh after close error = %v", err)
	}
	if _, err := repo.CheckIgnored(context.Background(), []string{filepath.Join(dir, "x")}); !errors.Is(err, ErrRepositoryClosed) {
		t.Errorf("CheckIgnored after close error = %v", err)
	}
}

func TestManager_CloseAnnouncesAll(t *testing.T) {
	a, b := testRepo(t), testRepo(t)
	mgr := NewManager(ManagerConfig{})

	for _, dir := range []string{a, b} {
		if _, err := mgr.Open(context.Background(), dir); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(mgr.Sessions()); n != 2 {
		t.Fatalf("Sessions = %d, want 2", n)
	}

	var closed int
	mgr.OnSessionClosed(func(*Repository) { closed++ })
	if err := mgr.Close(); err != nil {
		t.Fatal(err)
	}
	if closed != 2 {
		t.Errorf("closed events = %d, want 2", closed)
	}
	if _, err := mgr.Open(context.Background(), a); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Open after Close error = %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
}
