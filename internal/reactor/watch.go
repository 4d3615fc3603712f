package reactor

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/r2upnpav/internal/syserr"
)

// watchPollTimeoutMs bounds how long a watch goroutine sleeps in poll before
// it re-checks whether it has been stopped.
const watchPollTimeoutMs = 250

// Watch runs fn on the loop each time fd becomes readable, hung up or in
// error, like a level-triggered io watch. fn must consume what is readable
// (or close the fd); the watch does not poll again until fn has returned.
//
// The watch ends when fn returns false, when the returned stop function is
// called, or when the reactor quits. A failing poll is logged and ends the
// watch after fn has had one chance to observe the failure itself.
//
// Parameters:
//   - fd: file descriptor to watch; it should be non-blocking
//   - fn: handler run on the loop; return false to remove the watch
//
// Returns:
//   - func(): stops the watch; safe to call more than once
func (r *Reactor) Watch(fd int, fn func() bool) func() {
	stop := make(chan struct{})
	var stopOnce sync.Once

	go r.watch(fd, fn, stop)

	return func() {
		stopOnce.Do(func() { close(stop) })
	}
}

func (r *Reactor) watch(fd int, fn func() bool, stop <-chan struct{}) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}} //nolint:gosec // fds fit in int32

	for {
		select {
		case <-stop:
			return
		case <-r.quit:
			return
		default:
		}

		n, err := unix.Poll(fds, watchPollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			r.logger.Error("watch poll failed", "fd", fd, "error", syserr.Check("poll", err))
			r.dispatchWatch(fn, stop)
			return
		}
		if n == 0 {
			continue
		}
		select {
		case <-stop:
			return
		default:
		}

		if !r.dispatchWatch(fn, stop) {
			return
		}
	}
}

// dispatchWatch runs fn on the loop and reports whether the watch should
// continue.
func (r *Reactor) dispatchWatch(fn func() bool, stop <-chan struct{}) bool {
	keep := make(chan bool, 1)
	err := r.Post(func() {
		select {
		case <-stop:
			keep <- false
		default:
			keep <- fn()
		}
	})
	if err != nil {
		return false
	}

	select {
	case k := <-keep:
		return k
	case <-stop:
		return false
	case <-r.quit:
		return false
	}
}
