// Package mqtt provides MQTT client connectivity for r2upnpav.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// MQTT is optional. When enabled, the bridge publishes renderer state and
// health under a topic prefix and accepts remote operations on the command
// topic:
//
//	r2upnpav/status               online/offline (retained, LWT)
//	r2upnpav/health               health report (retained)
//	r2upnpav/renderer/{name}      renderer state (retained)
//	r2upnpav/command              operation names in, e.g. "VolumeUp"
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().Command(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command %s", payload)
//	        return nil
//	    })
package mqtt
