// Package upnp connects the renderer package to real UPnP AV devices.
//
// It provides three pieces:
//   - ControlPoint searches for MediaRenderer devices over SSDP and reports
//     them to a Target on the reactor as they appear and disappear.
//   - Service implements renderer.Service: SOAP actions through goupnp and
//     GENA event subscriptions through an EventServer.
//   - EventServer owns the GENA subscriptions. Its Routes handler receives
//     NOTIFY requests on /upnp/event/{token} and posts each property change
//     to the reactor.
//
// # Discovery
//
// Every DiscoveryConfig.Interval the control point issues an M-SEARCH. A USN
// seen for the first time is reported with DeviceAppeared. A known USN that
// is missing from MissedScans consecutive searches is reported with
// DeviceUnavailable. When Interface is set, only responses that arrived on
// one of that interface's addresses count.
//
// # Eventing
//
// Each Subscribe call holds its own GENA subscription. A goroutine renews it
// at half the granted timeout and sends UNSUBSCRIBE once the subscription is
// cancelled. A renewal the device rejects is replaced by a fresh SUBSCRIBE.
package upnp
