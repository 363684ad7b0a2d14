// Package registry binds decoration providers to repository sessions.
//
// For every open session the Registry owns exactly one ignore.Queue and one
// aggregator.Aggregator, both registered with the host sink under the
// session's root. Sessions never reference their providers; the registry
// disposes them when the session closes, when decorations are disabled, or
// when the registry itself is disposed.
package registry
