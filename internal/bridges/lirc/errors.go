package lirc

import "errors"

// Sentinel errors for the IR bridge.
var (
	// ErrConfigSyntax indicates a malformed lircrc file.
	ErrConfigSyntax = errors.New("lirc: lircrc syntax error")

	// ErrConfigRead indicates a lircrc file could not be read.
	ErrConfigRead = errors.New("lirc: lircrc read failed")

	// ErrConnect indicates lircd could not be reached.
	ErrConnect = errors.New("lirc: lircd connection failed")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("lirc: already started")
)
