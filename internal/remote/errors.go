package remote

import "errors"

// ErrUnknownOperation is returned for a name that matches no Operation.
var ErrUnknownOperation = errors.New("remote: unknown operation")
