package renderer

import "errors"

// Sentinel errors for renderer operations.
var (
	// ErrServiceNotFound indicates the device does not offer a required service.
	ErrServiceNotFound = errors.New("renderer: service not found")

	// ErrActionFailed indicates a UPnP action returned an error.
	ErrActionFailed = errors.New("renderer: action failed")

	// ErrInvalidResponse indicates an action response lacked or mangled an
	// expected output argument.
	ErrInvalidResponse = errors.New("renderer: invalid action response")

	// ErrMalformedLastChange indicates a LastChange payload could not be parsed.
	ErrMalformedLastChange = errors.New("renderer: malformed LastChange")

	// ErrInvalidPattern indicates the renderer name pattern does not compile.
	ErrInvalidPattern = errors.New("renderer: invalid name pattern")
)
