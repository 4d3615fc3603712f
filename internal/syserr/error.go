// Package syserr wraps failing operating system calls into structured errors.
//
// A raw errno says what went wrong but not where. Check records the call site
// (file, function and line of the caller) next to the operation name so a log
// line like
//
//	pipe.go;cec.(*Pipe).Send;88;write: resource temporarily unavailable
//
// identifies the failing call without a stack trace. The original errno stays
// reachable through errors.Is / errors.As:
//
//	if errors.Is(err, unix.EAGAIN) { ... }
package syserr

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
)

// Error is a failed system call together with where it was made.
type Error struct {
	// Op is the system call or operation name ("pipe", "read", "poll").
	Op string

	// Location is "file;function;line" of the code that made the call.
	Location string

	// Err is the underlying error, normally a syscall.Errno.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s;%s: %v", e.Location, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errno returns the errno carried by err, or 0 if there is none.
func Errno(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}

// Check wraps err with the caller's location. It returns nil when err is nil
// so calls can be written inline:
//
//	if err := syserr.Check("pipe", unix.Pipe(fds)); err != nil {
//	    return err
//	}
func Check(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Location: caller(2), Err: err}
}

// CheckN is Check for calls returning a count, where -1 signals failure.
func CheckN(op string, n int, err error) (int, error) {
	if err == nil && n != -1 {
		return n, nil
	}
	if err == nil {
		err = syscall.EINVAL
	}
	return n, &Error{Op: op, Location: caller(2), Err: err}
}

func caller(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown;unknown;0"
	}
	fn := "unknown"
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
		if i := strings.LastIndex(fn, "/"); i >= 0 {
			fn = fn[i+1:]
		}
	}
	return fmt.Sprintf("%s;%s;%d", filepath.Base(file), fn, line)
}
