//go:build !libcec

package cec

import (
	"context"
	"errors"
	"testing"
)

func TestLibCEC_Unsupported(t *testing.T) {
	if _, err := (LibCEC{}).Open(context.Background(), BusConfig{}, nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Open() error = %v, want ErrUnsupported", err)
	}
}
