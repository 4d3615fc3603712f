// Package reactor provides the single-goroutine event loop that owns all
// renderer state.
//
// Every piece of mutable renderer state (the registry maps, the cached
// mute/volume of each renderer) is touched only by tasks running on the
// goroutine that called Run. Other goroutines never share that state; they
// hand work over instead:
//
//	┌────────────┐  Post(fn)   ┌───────────────────────┐
//	│ discovery  │────────────►│                       │
//	├────────────┤             │   Reactor.Run(ctx)    │
//	│ GENA NOTIFY│────────────►│  one task at a time   │──► renderer.Registry
//	├────────────┤  Inbox.Push │                       │
//	│ lircd pump │────────────►│                       │
//	├────────────┤  Watch(fd)  │                       │
//	│ CEC pipe   │────────────►│                       │
//	└────────────┘             └───────────────────────┘
//
// Three hand-over forms exist:
//   - Post / Call run a closure on the loop.
//   - Inbox is a bounded producer queue that schedules at most one drain task
//     at a time, so a burst of input is folded in a single wakeup.
//   - Watch polls a file descriptor for readability and runs a handler on the
//     loop whenever it becomes readable.
//
// Termination: Quit stops the loop; Run then returns nil. Components that
// detect a lost connection call Quit, which is how the process shuts down
// when lircd or the CEC bus goes away.
package reactor
