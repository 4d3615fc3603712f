// Package mqttremote lets MQTT act as a third remote control and reports
// the bridge's health over MQTT.
//
// Commands: each message on the command topic carries one operation name
// ("Play", "pause", "VolumeUp", ...). Messages are queued from paho's
// goroutines into a reactor inbox and folded into one batch per wakeup,
// exactly like IR input, with a unit volume step.
//
// Health: HealthReporter publishes a retained JSON report every 30 seconds
// and whenever the renderer count or an input changes:
//
//	{"status":"healthy","version":"1.0.0","uptime_seconds":3600,
//	 "renderers":2,"inputs":{"cec":true,"lirc":true},"timestamp":"..."}
package mqttremote
