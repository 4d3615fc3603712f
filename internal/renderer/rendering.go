package renderer

import (
	"context"
	"fmt"
)

// masterChannelArg addresses the master volume/mute of a renderer.
var masterChannelArg = Arg{Name: "Channel", Value: masterChannel}

// State is the cached rendering state of one renderer.
type State struct {
	Muted  bool `json:"muted"`
	Volume uint `json:"volume"`
}

// RenderingControl issues RenderingControl actions to one renderer and keeps
// an eventually consistent copy of its mute and volume.
type RenderingControl struct {
	name     string
	svc      Service
	decoder  *LastChangeDecoder
	state    State
	cancel   func()
	onChange func(name string, state State)
	logger   Logger
}

// renderingOptions carries the optional collaborators of a RenderingControl.
type renderingOptions struct {
	logger   Logger
	onChange func(name string, state State)
}

// NewRenderingControl binds to the RenderingControl service of dev,
// subscribes to LastChange and seeds the cache with GetMute and GetVolume.
//
// A failed subscription or query is logged and leaves the corresponding
// state at its zero value; only a missing service fails construction.
//
// Parameters:
//   - ctx: bounds the two seeding queries
//   - name: renderer friendly name
//   - dev: the discovered renderer
//   - decoder: shared LastChange decoder
//
// Returns:
//   - *RenderingControl: the proxy
//   - error: ErrServiceNotFound if dev has no RenderingControl service
func NewRenderingControl(ctx context.Context, name string, dev Device, decoder *LastChangeDecoder) (*RenderingControl, error) {
	return newRenderingControl(ctx, name, dev, decoder, renderingOptions{})
}

func newRenderingControl(ctx context.Context, name string, dev Device, decoder *LastChangeDecoder, opts renderingOptions) (*RenderingControl, error) {
	svc, ok := dev.Service(ServiceTypeRenderingControl)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %q", ErrServiceNotFound, ServiceTypeRenderingControl, name)
	}
	if decoder == nil {
		decoder = NewLastChangeDecoder()
	}

	rc := &RenderingControl{
		name:     name,
		svc:      svc,
		decoder:  decoder,
		onChange: opts.onChange,
		logger:   opts.logger,
	}
	if rc.logger == nil {
		rc.logger = noopLogger{}
	}

	cancel, err := svc.Subscribe("LastChange", rc.handleLastChange)
	if err != nil {
		rc.logger.Warn("LastChange subscription failed", "renderer", name, "error", err)
	} else {
		rc.cancel = cancel
	}

	// A LastChange may arrive while these run; the queries make sure the
	// cache is seeded even if none ever does.
	if muted, err := rc.getMute(ctx); err != nil {
		rc.logger.Warn("GetMute failed", "renderer", name, "error", err)
	} else {
		rc.state.Muted = muted
		rc.logger.Debug("GetMute", "renderer", name, "muted", muted)
	}
	if volume, err := rc.getVolume(ctx); err != nil {
		rc.logger.Warn("GetVolume failed", "renderer", name, "error", err)
	} else {
		rc.state.Volume = volume
		rc.logger.Debug("GetVolume", "renderer", name, "volume", volume)
	}

	return rc, nil
}

// Name returns the renderer's friendly name.
func (rc *RenderingControl) Name() string {
	return rc.name
}

// State returns the cached mute and volume.
func (rc *RenderingControl) State() State {
	return rc.state
}

// ToggleMute asks the renderer to invert the cached mute state. The cache
// flips only once the renderer accepted the request.
func (rc *RenderingControl) ToggleMute(ctx context.Context) error {
	desired := !rc.state.Muted
	rc.logger.Debug("SetMute", "renderer", rc.name, "muted", desired)

	_, err := rc.svc.SendAction(ctx, "SetMute", []Arg{
		{Name: "InstanceID", Value: uint32(instanceID)},
		masterChannelArg,
		{Name: "DesiredMute", Value: desired},
	})
	if err != nil {
		return fmt.Errorf("%w: SetMute: %w", ErrActionFailed, err)
	}

	rc.state.Muted = desired
	rc.changed()
	return nil
}

// AdjustVolume changes the volume by delta. A muted renderer is unmuted
// first; if that fails the adjustment is still attempted. The volume the
// renderer reports back replaces the cache.
func (rc *RenderingControl) AdjustVolume(ctx context.Context, delta int) error {
	if rc.state.Muted {
		if err := rc.ToggleMute(ctx); err != nil {
			rc.logger.Warn("unmute before volume change failed", "renderer", rc.name, "error", err)
		}
	}

	rc.logger.Debug("SetRelativeVolume", "renderer", rc.name, "adjustment", delta)
	out, err := rc.svc.SendAction(ctx, "SetRelativeVolume", []Arg{
		{Name: "InstanceID", Value: uint32(instanceID)},
		masterChannelArg,
		{Name: "Adjustment", Value: int32(delta)}, //nolint:gosec // remote deltas are tiny
	}, "NewVolume")
	if err != nil {
		return fmt.Errorf("%w: SetRelativeVolume: %w", ErrActionFailed, err)
	}

	volume, err := ParseUint(out["NewVolume"])
	if err != nil {
		return fmt.Errorf("%w: NewVolume %q: %w", ErrInvalidResponse, out["NewVolume"], err)
	}

	rc.state.Volume = volume
	rc.logger.Debug("volume set", "renderer", rc.name, "volume", volume)
	rc.changed()
	return nil
}

// Close ends the LastChange subscription.
func (rc *RenderingControl) Close() {
	if rc.cancel != nil {
		rc.cancel()
		rc.cancel = nil
	}
}

func (rc *RenderingControl) getMute(ctx context.Context) (bool, error) {
	out, err := rc.svc.SendAction(ctx, "GetMute", []Arg{
		{Name: "InstanceID", Value: uint32(instanceID)},
		masterChannelArg,
	}, "CurrentMute")
	if err != nil {
		return false, err
	}
	muted, err := ParseBool(out["CurrentMute"])
	if err != nil {
		return false, fmt.Errorf("%w: CurrentMute: %w", ErrInvalidResponse, err)
	}
	return muted, nil
}

func (rc *RenderingControl) getVolume(ctx context.Context) (uint, error) {
	out, err := rc.svc.SendAction(ctx, "GetVolume", []Arg{
		{Name: "InstanceID", Value: uint32(instanceID)},
		masterChannelArg,
	}, "CurrentVolume")
	if err != nil {
		return 0, err
	}
	volume, err := ParseUint(out["CurrentVolume"])
	if err != nil {
		return 0, fmt.Errorf("%w: CurrentVolume: %w", ErrInvalidResponse, err)
	}
	return volume, nil
}

// handleLastChange applies the Mute and Volume of instance 0 to the cache.
// Variables missing from the payload keep their cached value.
func (rc *RenderingControl) handleLastChange(payload string) {
	values, err := rc.decoder.Decode(payload, instanceID, "Mute", "Volume")
	if err != nil {
		rc.logger.Warn("LastChange decode failed", "renderer", rc.name, "error", err)
		return
	}

	next := rc.state
	if v, ok := values["Mute"]; ok {
		muted, err := ParseBool(v)
		if err != nil {
			rc.logger.Warn("LastChange Mute invalid", "renderer", rc.name, "value", v)
		} else {
			next.Muted = muted
		}
	}
	if v, ok := values["Volume"]; ok {
		volume, err := ParseUint(v)
		if err != nil {
			rc.logger.Warn("LastChange Volume invalid", "renderer", rc.name, "value", v)
		} else {
			next.Volume = volume
		}
	}

	if next == rc.state {
		return
	}
	rc.state = next
	rc.logger.Debug("LastChange", "renderer", rc.name, "muted", next.Muted, "volume", next.Volume)
	rc.changed()
}

func (rc *RenderingControl) changed() {
	if rc.onChange != nil {
		rc.onChange(rc.name, rc.state)
	}
}
