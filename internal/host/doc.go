// Package host is the in-process decoration sink used by the gitdecor binary.
//
// Providers register under a scope, the root path of the repository they
// serve. Decorate asks every provider whose scope contains a path and keeps
// the highest-priority answer. Change batches from providers are forwarded to
// subscribers together with the scope they came from.
package host
