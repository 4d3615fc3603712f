// Package renderer tracks the UPnP AV media renderers under remote control
// and fans control actions out to them.
//
// # Architecture
//
//	discovery ──DeviceAppeared/DeviceUnavailable──► Registry
//	                                                  │
//	                        ┌─────────────────────────┴──────────────┐
//	                        ▼                                        ▼
//	               TransportControl                         RenderingControl
//	          (AVTransport: Play, Pause,            (RenderingControl: SetMute,
//	           Next, Previous)                       SetRelativeVolume, cached
//	                                                 mute/volume, LastChange)
//
// A renderer is keyed by its friendly name. The Registry admits a renderer
// only when the name matches its pattern and both proxies were built, so a
// half-constructed renderer is never visible to a notification or a fan-out.
//
// # State
//
// RenderingControl caches mute and volume. The cache is eventually consistent
// with the device:
//   - mute flips locally only after SetMute succeeded;
//   - volume is replaced by the NewVolume the device returns from
//     SetRelativeVolume, so device-side clamping never drifts the cache;
//   - LastChange notifications for instance 0 update whichever of Mute and
//     Volume they carry and leave the other alone.
//
// # Thread Safety
//
// Nothing in this package locks. Every method must run on the reactor
// goroutine; service implementations deliver notifications there too.
package renderer
