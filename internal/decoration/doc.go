// Package decoration defines the values and contracts shared by gitdecor's
// decoration providers and the host that renders them.
//
// A Decoration is a small immutable visual hint attached to one path. Paths
// are compared through Key, which maps every spelling of a path (file URIs,
// redundant separators, NFD/NFC Unicode forms) to one canonical string.
//
// Providers answer ProvideDecoration for a single path and announce batches of
// changed paths through OnDidChangeDecorations. A Sink is the host side: it
// accepts provider registrations scoped to a repository root and hands back a
// Registration to release them.
package decoration
