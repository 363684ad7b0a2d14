// Package event provides the ordered publish/subscribe primitive used to carry
// decoration change batches, repository operation notifications and session
// lifecycle events between gitdecor components.
//
// An Emitter delivers each emitted value synchronously, in the publisher's
// goroutine, to every active subscriber in subscription order:
//
//	var changes event.Emitter[[]string]
//
//	sub := changes.Subscribe(func(paths []string) {
//	    fmt.Println("changed:", paths)
//	})
//	defer sub.Cancel()
//
//	changes.Emit([]string{"/repo/a.txt"})
//
// A subscriber that panics is recovered; the panic is reported to the
// emitter's panic handler and delivery continues with the next subscriber.
package event
