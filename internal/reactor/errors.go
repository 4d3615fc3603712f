package reactor

import "errors"

// Sentinel errors for reactor operations.
var (
	// ErrStopped is returned when work is handed to a reactor that has quit.
	ErrStopped = errors.New("reactor: stopped")

	// ErrRunning is returned when Run is called on a reactor that is already running.
	ErrRunning = errors.New("reactor: already running")

	// ErrEmpty is returned by Inbox.Next when nothing is queued right now.
	// It is the normal end of a drain loop, not a failure.
	ErrEmpty = errors.New("reactor: inbox empty")

	// ErrClosed is returned by Inbox.Next once the producer closed the inbox
	// and every queued item has been consumed.
	ErrClosed = errors.New("reactor: inbox closed")
)
