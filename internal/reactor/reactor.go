package reactor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// defaultQueueSize bounds the number of tasks waiting for the loop.
const defaultQueueSize = 256

// Logger defines the logging interface used by the reactor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Reactor runs posted tasks one at a time on a single goroutine.
//
// Thread Safety: Post, Call, Quit, Done and Watch are safe from any goroutine.
// Tasks themselves run serially and may freely touch loop-owned state.
type Reactor struct {
	tasks    chan func()
	quit     chan struct{}
	quitOnce sync.Once
	running  atomic.Bool
	logger   Logger
}

// New creates a reactor. It does nothing until Run is called.
func New() *Reactor {
	return &Reactor{
		tasks:  make(chan func(), defaultQueueSize),
		quit:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the reactor.
func (r *Reactor) SetLogger(logger Logger) {
	if logger == nil {
		r.logger = noopLogger{}
		return
	}
	r.logger = logger
}

// Run executes tasks until Quit is called or ctx is cancelled.
//
// A task that panics is logged and the loop continues. Termination through
// Quit or ctx is graceful and returns nil.
//
// Returns:
//   - error: ErrRunning if another Run is in progress, ErrStopped if the
//     reactor already quit before Run was called
func (r *Reactor) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer r.running.Store(false)

	select {
	case <-r.quit:
		return ErrStopped
	default:
	}

	r.logger.Debug("reactor started")
	for {
		select {
		case <-r.quit:
			r.logger.Debug("reactor stopped")
			return nil
		case <-ctx.Done():
			r.Quit()
			r.logger.Debug("reactor stopped", "reason", ctx.Err())
			return nil
		case fn := <-r.tasks:
			r.execute(fn)
		}
	}
}

func (r *Reactor) execute(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in reactor task", "panic", fmt.Sprint(rec))
		}
	}()
	fn()
}

// Post schedules fn to run on the loop. It blocks only while the task queue
// is full.
//
// Returns:
//   - error: ErrStopped if the reactor has quit
func (r *Reactor) Post(fn func()) error {
	select {
	case <-r.quit:
		return ErrStopped
	default:
	}

	select {
	case r.tasks <- fn:
		return nil
	case <-r.quit:
		return ErrStopped
	}
}

// Call runs fn on the loop and waits for it to finish.
//
// Must not be called from a reactor task: the loop would wait on itself.
//
// Returns:
//   - error: ErrStopped if the reactor quit first, or ctx.Err()
func (r *Reactor) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := r.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-r.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Quit terminates the loop. Tasks still queued are discarded. Safe to call
// more than once and from any goroutine, including from a task.
func (r *Reactor) Quit() {
	r.quitOnce.Do(func() {
		close(r.quit)
	})
}

// Done is closed once Quit has been called.
func (r *Reactor) Done() <-chan struct{} {
	return r.quit
}
