package decoration

// ResourceState is one tracked file as reported by a repository.
type ResourceState struct {
	// Path is the file path, absolute within the working tree.
	Path string

	// Original is the spelling of Path under the session root, set when the
	// session was opened below or through a link to the working tree root.
	// Decorations are keyed by it. When empty, Path is used.
	Original string

	// RenamedFrom is the source path of a rename or copy, spelled like
	// Identity. It is not decorated.
	RenamedFrom string

	// Decoration is the precomputed decoration, or nil when the state carries none.
	Decoration *Decoration
}

// Identity returns the path the state should be decorated under.
func (r ResourceState) Identity() string {
	if r.Original != "" {
		return r.Original
	}
	return r.Path
}

// ResourceGroup is a named collection of resource states, e.g. staged changes.
type ResourceGroup struct {
	// ID names the group ("index", "workingTree").
	ID string

	// States are the group's resources in repository order.
	States []ResourceState
}

// Group identifiers used by the git integration.
const (
	GroupIndex       = "index"
	GroupWorkingTree = "workingTree"
)
