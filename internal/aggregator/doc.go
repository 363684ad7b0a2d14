// Package aggregator keeps one repository's map of file decorations in sync
// with its resource groups.
//
// Every time the repository reports a completed operation, the Aggregator
// rebuilds the whole map from the index and working-tree groups and tells
// subscribers which paths gained or lost a decoration. Only presence is
// compared: a path decorated before and after a recomputation is not
// reported, even if its decoration value changed.
package aggregator
