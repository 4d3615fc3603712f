package cec

import "errors"

// Sentinel errors for the CEC bridge.
var (
	// ErrNoData is returned by Pipe.Read when nothing is buffered right now.
	ErrNoData = errors.New("cec: no data")

	// ErrWriterClosed is returned by Pipe.Send once the write end is closed.
	ErrWriterClosed = errors.New("cec: pipe writer closed")

	// ErrShortRead indicates a partial key record was read from the pipe.
	ErrShortRead = errors.New("cec: short read")

	// ErrOpen indicates the CEC adapter could not be opened.
	ErrOpen = errors.New("cec: open failed")

	// ErrUnsupported indicates the binary was built without libcec.
	ErrUnsupported = errors.New("cec: built without libcec support")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("cec: already started")
)
