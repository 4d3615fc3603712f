package renderer

import (
	"context"
	"fmt"
)

// instanceID is the AV instance every action addresses. Renderers without
// connection management expose exactly one instance, number 0.
const instanceID = 0

// TransportControl issues AVTransport actions to one renderer.
type TransportControl struct {
	name string
	svc  Service
}

// NewTransportControl binds to the AVTransport service of dev.
//
// Returns:
//   - error: ErrServiceNotFound if dev has no AVTransport service
func NewTransportControl(name string, dev Device) (*TransportControl, error) {
	svc, ok := dev.Service(ServiceTypeAVTransport)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %q", ErrServiceNotFound, ServiceTypeAVTransport, name)
	}
	return &TransportControl{name: name, svc: svc}, nil
}

// Name returns the renderer's friendly name.
func (t *TransportControl) Name() string {
	return t.name
}

// Play starts playback at normal speed.
func (t *TransportControl) Play(ctx context.Context) error {
	return t.send(ctx, "Play", Arg{Name: "InstanceID", Value: uint32(instanceID)}, Arg{Name: "Speed", Value: "1"})
}

// Pause pauses playback.
func (t *TransportControl) Pause(ctx context.Context) error {
	return t.send(ctx, "Pause", Arg{Name: "InstanceID", Value: uint32(instanceID)})
}

// Next skips to the next track.
func (t *TransportControl) Next(ctx context.Context) error {
	return t.send(ctx, "Next", Arg{Name: "InstanceID", Value: uint32(instanceID)})
}

// Previous skips to the previous track.
func (t *TransportControl) Previous(ctx context.Context) error {
	return t.send(ctx, "Previous", Arg{Name: "InstanceID", Value: uint32(instanceID)})
}

func (t *TransportControl) send(ctx context.Context, action string, in ...Arg) error {
	if _, err := t.svc.SendAction(ctx, action, in); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrActionFailed, action, err)
	}
	return nil
}
