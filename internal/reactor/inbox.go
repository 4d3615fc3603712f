package reactor

import "sync/atomic"

// Inbox hands items from producer goroutines to the loop.
//
// Push never blocks: when the buffer is full the item is dropped. A push
// schedules a drain task on the loop unless one is already pending, so a
// burst of pushes costs one wakeup. The drain task calls the onReady
// function given to NewInbox, which is expected to call Next until it
// returns an error.
//
// Push is safe from concurrent producers. Close must be called once all
// pushes have returned.
type Inbox[T any] struct {
	r       *Reactor
	items   chan T
	closed  chan struct{}
	pending atomic.Bool
	onReady func()
	dropped atomic.Uint64
}

// NewInbox creates an inbox feeding r.
//
// Parameters:
//   - r: reactor that runs onReady
//   - size: buffer capacity; pushes beyond it are dropped
//   - onReady: drain function run on the loop
func NewInbox[T any](r *Reactor, size int, onReady func()) *Inbox[T] {
	return &Inbox[T]{
		r:       r,
		items:   make(chan T, size),
		closed:  make(chan struct{}),
		onReady: onReady,
	}
}

// Push queues v and wakes the loop. It reports false if v was dropped
// because the buffer is full or the reactor has quit.
func (b *Inbox[T]) Push(v T) bool {
	select {
	case b.items <- v:
	default:
		b.dropped.Add(1)
		return false
	}
	return b.wake()
}

// Close marks the end of the stream. Once queued items are drained, Next
// returns ErrClosed.
func (b *Inbox[T]) Close() {
	select {
	case <-b.closed:
		return
	default:
	}
	close(b.closed)
	b.wake()
}

// Next returns the next queued item. It never blocks.
//
// Returns:
//   - error: ErrEmpty when nothing is queued, ErrClosed once the producer
//     closed the inbox and it is drained
func (b *Inbox[T]) Next() (T, error) {
	select {
	case v := <-b.items:
		return v, nil
	default:
	}

	var zero T
	select {
	case <-b.closed:
		// items pushed before Close still take precedence
		select {
		case v := <-b.items:
			return v, nil
		default:
		}
		return zero, ErrClosed
	default:
		return zero, ErrEmpty
	}
}

// Dropped returns how many pushes were discarded because the buffer was full.
func (b *Inbox[T]) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Inbox[T]) wake() bool {
	if !b.pending.CompareAndSwap(false, true) {
		return true
	}
	err := b.r.Post(func() {
		b.pending.Store(false)
		b.onReady()
	})
	if err != nil {
		b.pending.Store(false)
		return false
	}
	return true
}
