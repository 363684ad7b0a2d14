package git

import (
	"github.com/dshills/gitdecor/internal/decoration"
)

type statusStyle struct {
	letter  string
	tooltip string
	color   string
}

var indexStyles = map[StatusCode]statusStyle{
	StatusModified: {"M", "Index Modified", "gitDecoration.stageModifiedResourceForeground"},
	StatusAdded:    {"A", "Index Added", "gitDecoration.addedResourceForeground"},
	StatusDeleted:  {"D", "Index Deleted", "gitDecoration.stageDeletedResourceForeground"},
	StatusRenamed:  {"R", "Index Renamed", "gitDecoration.renamedResourceForeground"},
	StatusCopied:   {"C", "Index Copied", "gitDecoration.addedResourceForeground"},
}

var workingTreeStyles = map[StatusCode]statusStyle{
	StatusModified:  {"M", "Modified", "gitDecoration.modifiedResourceForeground"},
	StatusAdded:     {"A", "Intent to Add", "gitDecoration.addedResourceForeground"},
	StatusDeleted:   {"D", "Deleted", "gitDecoration.deletedResourceForeground"},
	StatusRenamed:   {"R", "Renamed", "gitDecoration.renamedResourceForeground"},
	StatusCopied:    {"C", "Copied", "gitDecoration.addedResourceForeground"},
	StatusUntracked: {"U", "Untracked", "gitDecoration.untrackedResourceForeground"},
	StatusConflict:  {"!", "Conflict", "gitDecoration.conflictingResourceForeground"},
}

// DecorationFor returns the decoration of a file status, or nil for
// statuses that are not decorated.
func DecorationFor(fs FileStatus) *decoration.Decoration {
	styles := workingTreeStyles
	if fs.Staged {
		styles = indexStyles
	}
	style, ok := styles[fs.Status]
	if !ok {
		return nil
	}

	priority := decoration.PriorityDefault
	switch fs.Status {
	case StatusModified:
		priority = decoration.PriorityModified
	case StatusConflict:
		priority = decoration.PriorityConflict
	}

	return &decoration.Decoration{
		Priority: priority,
		Opacity:  1,
		Letter:   style.letter,
		Tooltip:  style.tooltip,
		Color:    style.color,
		// A deleted file has no row of its own to bubble from.
		Bubble: fs.Status != StatusDeleted,
	}
}

// groups converts a status snapshot into resource groups. Path is the
// location git reports; Original carries the session-root spelling when the
// two differ. Rename and copy sources land in RenamedFrom.
func (r *Repository) groups(s *Status) (index, work decoration.ResourceGroup) {
	index = decoration.ResourceGroup{ID: decoration.GroupIndex, States: r.states(s.Index)}
	work = decoration.ResourceGroup{ID: decoration.GroupWorkingTree, States: r.states(s.WorkingTree)}
	return index, work
}

func (r *Repository) states(files []FileStatus) []decoration.ResourceState {
	out := make([]decoration.ResourceState, 0, len(files))
	for _, fs := range files {
		st := decoration.ResourceState{
			Path:       r.toplevelPath(fs.Path),
			Decoration: DecorationFor(fs),
		}
		if spelled := r.absolute(fs.Path); spelled != st.Path {
			st.Original = spelled
		}
		if fs.OldPath != "" {
			st.RenamedFrom = r.absolute(fs.OldPath)
		}
		out = append(out, st)
	}
	return out
}
