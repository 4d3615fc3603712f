// Package cec turns HDMI-CEC remote keys into renderer actions.
//
// libcec calls back on its own threads. Those callbacks never touch renderer
// state; instead each key press is written as a 4-byte record into a
// non-blocking pipe:
//
//	libcec ──HandleKeyPress──► Pipe (write end) ──► Pipe (read end)
//	                                                   │ reactor.Watch
//	                                                   ▼
//	                                     input: drain, fold, Batch.Apply(step 2)
//
// The pipe is the only thing the two sides share. A write that fails (the
// pipe is full or already closed) closes the write end for good, so a
// misbehaving bus degrades to "no more CEC input" rather than blocking
// libcec. Once the reactor has drained what was written it reads end of
// file and stops the reactor.
//
// A connection-lost alert from the bus closes the write end the same way.
//
// The libcec binding (github.com/laher/cec) needs cgo and the libcec headers,
// so it is only compiled with the libcec build tag:
//
//	go build -tags libcec ./cmd/r2upnpav
//
// Without the tag LibCEC.Open returns ErrUnsupported.
package cec
