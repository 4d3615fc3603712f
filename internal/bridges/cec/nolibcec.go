//go:build !libcec

package cec

import (
	"context"
	"io"
)

// LibCEC is the libcec-backed Bus. This build has no libcec support.
type LibCEC struct{}

var _ Bus = LibCEC{}

// Open always fails with ErrUnsupported.
func (LibCEC) Open(context.Context, BusConfig, Handler) (io.Closer, error) {
	return nil, ErrUnsupported
}
