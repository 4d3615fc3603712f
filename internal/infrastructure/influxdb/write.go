package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	// MeasurementRendererState records a renderer's cached mute and volume.
	MeasurementRendererState = "renderer_state"

	// MeasurementRemoteBatch records one applied input batch.
	MeasurementRemoteBatch = "remote_batch"
)

// WriteRendererState records a renderer's mute and volume.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - renderer: friendly name, used as the "renderer" tag
//   - muted: current mute state
//   - volume: current volume (0-100 on most renderers)
func (c *Client) WriteRendererState(renderer string, muted bool, volume uint) {
	c.writePoint(
		MeasurementRendererState,
		map[string]string{"renderer": renderer},
		map[string]interface{}{
			"muted":  muted,
			"volume": int64(volume), //nolint:gosec // UPnP volume is 0-100
		},
		time.Now(),
	)
}

// WriteRemoteBatch records the net effect of one input batch.
//
// Parameters:
//   - source: input that produced the batch ("lirc", "cec", "mqtt")
//   - play, skip, volume: signed biases of the batch
//   - mute: whether the batch toggles mute
func (c *Client) WriteRemoteBatch(source string, play, skip, volume int, mute bool) {
	c.writePoint(
		MeasurementRemoteBatch,
		map[string]string{"source": source},
		map[string]interface{}{
			"play":   int64(play),
			"skip":   int64(skip),
			"volume": int64(volume),
			"mute":   mute,
		},
		time.Now(),
	)
}

// writePoint queues one point. Points written while disconnected are
// dropped.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
