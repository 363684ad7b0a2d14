package watcher

import (
	"sort"
	"sync"
	"time"
)

// DefaultBatchDelay is the quiet period used when none is given.
const DefaultBatchDelay = 250 * time.Millisecond

// Batcher collects events from a Source and delivers them as one batch once
// no new event has arrived for the configured delay. Events for the same path
// inside a batch are merged and their operations combined.
type Batcher struct {
	inner Source
	delay time.Duration

	mu      sync.Mutex
	pending map[string]Event
	timer   *time.Timer
	batches chan []Event
	errors  chan error
	closed  bool
	closeCh chan struct{}

	loopWg   sync.WaitGroup
	inflight sync.WaitGroup
}

// NewBatcher wraps inner. A non-positive delay selects DefaultBatchDelay.
func NewBatcher(inner Source, delay time.Duration) *Batcher {
	if delay <= 0 {
		delay = DefaultBatchDelay
	}

	b := &Batcher{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]Event),
		batches: make(chan []Event, 16),
		errors:  make(chan error, 16),
		closeCh: make(chan struct{}),
	}

	b.loopWg.Add(1)
	go b.processLoop()

	return b
}

// Batches returns the channel of event batches. Each batch is sorted by path.
func (b *Batcher) Batches() <-chan []Event {
	return b.batches
}

// Errors returns errors forwarded from the inner source.
func (b *Batcher) Errors() <-chan error {
	return b.errors
}

// PendingCount returns the number of distinct paths waiting in the open batch.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush delivers the open batch immediately.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()
	b.fire()
}

// Close discards the open batch, stops the batcher and closes the inner
// source.
func (b *Batcher) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	if b.timer != nil {
		b.timer.Stop()
	}
	clear(b.pending)
	b.mu.Unlock()

	b.loopWg.Wait()
	b.inflight.Wait()

	close(b.batches)
	close(b.errors)

	return b.inner.Close()
}

func (b *Batcher) processLoop() {
	defer b.loopWg.Done()

	for {
		select {
		case <-b.closeCh:
			return

		case event, ok := <-b.inner.Events():
			if !ok {
				return
			}
			b.add(event)

		case err, ok := <-b.inner.Errors():
			if !ok {
				return
			}
			select {
			case b.errors <- err:
			default:
			}
		}
	}
}

func (b *Batcher) add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if prev, ok := b.pending[event.Path]; ok {
		event.Op |= prev.Op
	}
	b.pending[event.Path] = event

	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, b.fire)
	} else {
		b.timer.Reset(b.delay)
	}
}

func (b *Batcher) fire() {
	b.mu.Lock()
	if b.closed || len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(b.pending))
	for _, ev := range b.pending {
		batch = append(batch, ev)
	}
	clear(b.pending)
	b.inflight.Add(1)
	b.mu.Unlock()
	defer b.inflight.Done()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case b.batches <- batch:
	case <-b.closeCh:
	}
}
