// Package ignore implements the coalescing "is this path ignored?" provider.
//
// Hosts ask for decorations one path at a time, often hundreds of paths in a
// burst when a folder is expanded. Queue buffers those queries and, once no
// new query has arrived for a quiet period (500ms by default), asks the
// repository about every buffered path in a single batched lookup:
//
//	q := ignore.New(repo, ignore.WithLogger(logger))
//	defer q.Dispose()
//
//	p := q.Query("/repo/build/out.o")
//	ignored, err := p.Wait(ctx)
//
// Each query is settled exactly once with the batch outcome: true when the
// lookup reported the path as ignored, false otherwise, or the lookup error
// for every query of a failed batch. Disposing the queue abandons queries that
// have not been settled; Wait then returns when the caller's context ends.
package ignore
