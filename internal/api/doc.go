// Package api implements the HTTP server of r2upnpav.
//
// One listener serves two audiences:
//   - UPnP renderers deliver GENA NOTIFY requests to /upnp/event/{token}
//   - operators read /api/v1/health and /api/v1/renderers, and watch live
//     renderer and input events over the /api/v1/ws WebSocket
//
// The listener is bound in Start, before discovery begins, so the chosen
// port can be advertised in GENA callback URLs even when the configured port
// is 0.
//
// # WebSocket
//
// Clients subscribe to the status channels ("*" for all of them) and
// receive events:
//
//	{"type":"subscribe","id":"1","payload":{"channels":["renderer.state_changed"]}}
//	{"type":"event","event_type":"renderer.state_changed","payload":{"name":"Kitchen","muted":false,"volume":23}}
//
// A "renderers" request is answered with the current renderer list, which
// lets a client seed its view before events arrive.
//
// There is no authentication; bind the server to a trusted interface.
package api
