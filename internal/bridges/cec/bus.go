package cec

import (
	"context"
	"io"
	"time"
)

// KeyPress is a remote key event from the bus. Duration is zero when the key
// goes down and carries the hold time when it is released.
type KeyPress struct {
	Code     KeyCode
	Duration time.Duration
}

// Alert is an out-of-band condition reported by the bus.
type Alert int

// Bus alerts.
const (
	AlertServiceDevice Alert = iota + 1
	AlertConnectionLost
	AlertPermissionError
	AlertPortBusy
	AlertPhysicalAddressError
	AlertTVPollFailed
)

var alertNames = map[Alert]string{
	AlertServiceDevice:        "service device",
	AlertConnectionLost:       "connection lost",
	AlertPermissionError:      "permission error",
	AlertPortBusy:             "port busy",
	AlertPhysicalAddressError: "physical address error",
	AlertTVPollFailed:         "TV poll failed",
}

func (a Alert) String() string {
	if name, ok := alertNames[a]; ok {
		return name
	}
	return "unknown"
}

// Handler receives bus callbacks. Calls arrive on a goroutine owned by the
// bus, one at a time.
type Handler interface {
	HandleKeyPress(k KeyPress)
	HandleCommand(description string)
	HandleLog(message string)
	HandleAlert(a Alert)
}

// BusConfig selects and names the CEC adapter.
type BusConfig struct {
	// Port is the adapter's com port. Empty picks the first adapter found.
	Port string

	// DeviceName is the OSD name shown on the TV.
	DeviceName string

	// Timeout bounds opening the adapter.
	Timeout time.Duration
}

// Bus opens a CEC adapter.
type Bus interface {
	// Open connects and starts delivering callbacks to h until the returned
	// closer is closed.
	Open(ctx context.Context, cfg BusConfig, h Handler) (io.Closer, error)
}
