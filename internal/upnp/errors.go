package upnp

import "errors"

// Sentinel errors for UPnP operations.
var (
	// ErrInvalidArgument indicates an action argument name cannot be encoded.
	ErrInvalidArgument = errors.New("upnp: invalid action argument")

	// ErrActionFailed indicates a SOAP action failed in transport or with a fault.
	ErrActionFailed = errors.New("upnp: action failed")

	// ErrNoEventURL indicates a service does not publish an event subscription URL.
	ErrNoEventURL = errors.New("upnp: service has no event URL")

	// ErrSubscribeFailed indicates the device rejected a GENA request.
	ErrSubscribeFailed = errors.New("upnp: subscribe failed")

	// ErrCallbackUnavailable indicates the event server has no listening port yet.
	ErrCallbackUnavailable = errors.New("upnp: event callback not available")

	// ErrInterfaceNotFound indicates the configured network interface does not exist.
	ErrInterfaceNotFound = errors.New("upnp: network interface not found")

	// ErrDiscoveryRunning indicates Start was called twice.
	ErrDiscoveryRunning = errors.New("upnp: discovery already running")
)
