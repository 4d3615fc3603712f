package cec

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/nerrad567/r2upnpav/internal/syserr"
)

// recordSize is the size of one key record in the pipe.
const recordSize = 4

// Pipe carries key codes from one writer goroutine to the reactor.
//
// Both ends are non-blocking and close-on-exec. Send may only be called from
// one goroutine at a time; Read only from the reactor.
type Pipe struct {
	r         int
	w         atomic.Int64
	closeOnce sync.Once
}

// NewPipe creates the pipe.
//
// Returns:
//   - error: *syserr.Error from pipe2
func NewPipe() (*Pipe, error) {
	var fds [2]int
	if err := syserr.Check("pipe2", unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC)); err != nil {
		return nil, err
	}
	p := &Pipe{r: fds[0]}
	p.w.Store(int64(fds[1]))
	return p, nil
}

// ReadFd returns the read end for readiness polling.
func (p *Pipe) ReadFd() int {
	return p.r
}

// Send writes one key record. Any failure, including a full pipe, closes the
// write end for good.
//
// Returns:
//   - error: ErrWriterClosed if the write end was already closed, or the
//     write failure
func (p *Pipe) Send(code KeyCode) error {
	fd := p.w.Load()
	if fd < 0 {
		return ErrWriterClosed
	}

	var buf [recordSize]byte
	binary.NativeEndian.PutUint32(buf[:], uint32(code))

	n, err := unix.Write(int(fd), buf[:])
	n, err = syserr.CheckN("write", n, err)
	if err == nil && n != recordSize {
		err = io.ErrShortWrite
	}
	if err != nil {
		p.CloseWriter()
		return err
	}
	return nil
}

// CloseWriter closes the write end. Safe to call more than once.
func (p *Pipe) CloseWriter() {
	if fd := p.w.Swap(-1); fd >= 0 {
		_ = unix.Close(int(fd))
	}
}

// WriterClosed reports whether the write end has been closed.
func (p *Pipe) WriterClosed() bool {
	return p.w.Load() < 0
}

// Read returns the next key record.
//
// Returns:
//   - error: ErrNoData when the pipe is empty, io.EOF once the write end is
//     closed and everything was read, ErrShortRead for a torn record, or a
//     *syserr.Error
func (p *Pipe) Read() (KeyCode, error) {
	var buf [recordSize]byte
	n, err := unix.Read(p.r, buf[:])
	n, err = syserr.CheckN("read", n, err)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, ErrNoData
		}
		return 0, err
	}
	switch {
	case n == 0:
		return 0, io.EOF
	case n != recordSize:
		return 0, ErrShortRead
	}
	return KeyCode(binary.NativeEndian.Uint32(buf[:])), nil
}

// Close closes both ends.
func (p *Pipe) Close() error {
	p.CloseWriter()
	var err error
	p.closeOnce.Do(func() {
		err = syserr.Check("close", unix.Close(p.r))
	})
	return err
}
