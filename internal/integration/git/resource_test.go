package git

import (
	"path/filepath"
	"testing"

	"github.com/dshills/gitdecor/internal/decoration"
)

func TestDecorationFor(t *testing.T) {
	tests := []struct {
		name     string
		fs       FileStatus
		letter   string
		tooltip  string
		priority int
		bubble   bool
	}{
		{"index modified", FileStatus{Status: StatusModified, Staged: true}, "M", "Index Modified", decoration.PriorityModified, true},
		{"modified", FileStatus{Status: StatusModified}, "M", "Modified", decoration.PriorityModified, true},
		{"index added", FileStatus{Status: StatusAdded, Staged: true}, "A", "Index Added", decoration.PriorityDefault, true},
		{"deleted", FileStatus{Status: StatusDeleted}, "D", "Deleted", decoration.PriorityDefault, false},
		{"untracked", FileStatus{Status: StatusUntracked}, "U", "Untracked", decoration.PriorityDefault, true},
		{"conflict", FileStatus{Status: StatusConflict}, "!", "Conflict", decoration.PriorityConflict, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DecorationFor(tt.fs)
			if d == nil {
				t.Fatal("DecorationFor = nil")
			}
			if d.Letter != tt.letter || d.Tooltip != tt.tooltip || d.Priority != tt.priority || d.Bubble != tt.bubble {
				t.Errorf("DecorationFor = %+v", *d)
			}
			if d.Opacity != 1 || d.Color == "" {
				t.Errorf("opacity/color = %v/%q", d.Opacity, d.Color)
			}
		})
	}

	if d := DecorationFor(FileStatus{Status: StatusUnmodified}); d != nil {
		t.Errorf("unmodified decoration = %+v", *d)
	}
}

func TestRepositoryGroups(t *testing.T) {
	top := filepath.FromSlash("/work/repo")
	r := &Repository{root: top, toplevel: top}

	index, work := r.groups(&Status{
		Index:       []FileStatus{{Path: "a.txt", Status: StatusAdded, Staged: true}},
		WorkingTree: []FileStatus{{Path: "dir/b.txt", Status: StatusModified}},
	})

	if index.ID != decoration.GroupIndex || work.ID != decoration.GroupWorkingTree {
		t.Errorf("group IDs = %q, %q", index.ID, work.ID)
	}
	if len(index.States) != 1 || index.States[0].Path != filepath.Join(top, "a.txt") {
		t.Fatalf("index states = %+v", index.States)
	}
	if index.States[0].Original != "" {
		t.Errorf("Original = %q, want empty when root is toplevel", index.States[0].Original)
	}
	if len(work.States) != 1 || work.States[0].Decoration == nil || work.States[0].Decoration.Letter != "M" {
		t.Errorf("work states = %+v", work.States)
	}
}

func TestRepositoryPathMappingWithPrefix(t *testing.T) {
	top := filepath.FromSlash("/work/repo")
	root := filepath.FromSlash("/link/sub")
	r := &Repository{root: root, toplevel: top, gitDir: filepath.Join(top, ".git"), prefix: "sub"}

	index, _ := r.groups(&Status{
		Index: []FileStatus{
			{Path: "sub/in.txt", Status: StatusAdded, Staged: true},
			{Path: "other/out.txt", Status: StatusAdded, Staged: true},
		},
	})
	in, out := index.States[0], index.States[1]
	if in.Path != filepath.Join(top, "sub", "in.txt") || in.Original != filepath.Join(root, "in.txt") {
		t.Errorf("inside state = %+v", in)
	}
	if in.Identity() != filepath.Join(root, "in.txt") {
		t.Errorf("Identity = %q", in.Identity())
	}
	if out.Original != "" {
		t.Errorf("outside state Original = %q", out.Original)
	}

	tests := []struct {
		path string
		rel  string
		ok   bool
	}{
		{filepath.Join(root, "a", "b.txt"), "sub/a/b.txt", true},
		{root, "sub", true},
		{filepath.Join(top, "other", "c.txt"), "other/c.txt", true},
		{filepath.Join(top, ".git", "config"), "", false},
		{top, "", false},
		{filepath.FromSlash("/elsewhere/x"), "", false},
		{"relative/x", "", false},
	}
	for _, tt := range tests {
		rel, ok := r.relative(tt.path)
		if rel != tt.rel || ok != tt.ok {
			t.Errorf("relative(%q) = %q, %v; want %q, %v", tt.path, rel, ok, tt.rel, tt.ok)
		}
	}
}

func TestRepositoryGroupsRenameSource(t *testing.T) {
	top := filepath.FromSlash("/work/repo")
	root := filepath.FromSlash("/link/sub")
	r := &Repository{root: root, toplevel: top, gitDir: filepath.Join(top, ".git"), prefix: "sub"}

	index, work := r.groups(&Status{
		Index:       []FileStatus{{Path: "sub/new.txt", OldPath: "sub/old.txt", Status: StatusRenamed, Staged: true}},
		WorkingTree: []FileStatus{{Path: "sub/edit.txt", Status: StatusModified}},
	})

	if got := index.States[0].RenamedFrom; got != filepath.Join(root, "old.txt") {
		t.Errorf("RenamedFrom = %q, want %q", got, filepath.Join(root, "old.txt"))
	}
	if got := index.States[0].Identity(); got != filepath.Join(root, "new.txt") {
		t.Errorf("Identity = %q, want the rename target", got)
	}
	if got := work.States[0].RenamedFrom; got != "" {
		t.Errorf("RenamedFrom = %q for a plain modification", got)
	}
}
