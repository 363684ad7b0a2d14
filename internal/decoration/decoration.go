package decoration

import "fmt"

// Priorities used by the built-in decorations. Higher values win when more than
// one provider decorates the same path.
const (
	PriorityDefault  = 1
	PriorityModified = 2
	PriorityIgnored  = 3
	PriorityConflict = 4
)

// Decoration is a visual hint for one path.
type Decoration struct {
	// Priority ranks decorations competing for the same path.
	Priority int

	// Opacity is the rendering intensity in [0, 1].
	Opacity float64

	// Letter is a short badge, e.g. "M" for modified.
	Letter string

	// Tooltip is a human-readable description of the status.
	Tooltip string

	// Color is a theme color identifier.
	Color string

	// Bubble marks decorations that should propagate to parent folders.
	Bubble bool
}

// String returns a compact description used in logs and CLI output.
func (d Decoration) String() string {
	s := fmt.Sprintf("priority=%d opacity=%.2f", d.Priority, d.Opacity)
	if d.Letter != "" {
		s += " letter=" + d.Letter
	}
	if d.Tooltip != "" {
		s += fmt.Sprintf(" tooltip=%q", d.Tooltip)
	}
	return s
}

// Ignored is the decoration applied to paths excluded by the version control system.
var Ignored = Decoration{Priority: PriorityIgnored, Opacity: 0.75}

// ForIgnored maps an ignored flag to its decoration.
// The second result is false when the path carries no decoration.
func ForIgnored(ignored bool) (Decoration, bool) {
	if !ignored {
		return Decoration{}, false
	}
	return Ignored, true
}

// Higher reports whether a should be rendered in preference to b.
func Higher(a, b Decoration) bool {
	return a.Priority > b.Priority
}
