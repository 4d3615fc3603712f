// Package status fans renderer and input activity out to the optional
// observability sinks: retained MQTT renderer topics, InfluxDB points and
// WebSocket events.
//
// The Publisher is installed as the registry's Observer and as every input's
// Recorder. Those callbacks run on the reactor goroutine, so the Publisher
// only queues an event there. A worker goroutine performs the network I/O,
// and events are dropped when the queue is full rather than stalling remote
// control.
//
// # MQTT
//
// Each registered renderer has a retained JSON document:
//
//	r2upnpav/renderer/{sanitized name}
//	{"name":"Kitchen - Sonos One","muted":false,"volume":23}
//
// The retained message is cleared when the renderer goes away.
//
// # WebSocket channels
//
//   - renderer.added
//   - renderer.removed
//   - renderer.state_changed
//   - remote.batch
package status
