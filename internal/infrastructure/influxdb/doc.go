// Package influxdb records renderer state and input activity in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written:
//
//	renderer_state,renderer=<name>  muted=<bool>,volume=<int>
//	remote_batch,source=<input>     play=<int>,skip=<int>,volume=<int>,mute=<bool>
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteRendererState("Kitchen - Sonos One", false, 22)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Asynchronous write failures are reported through
// SetOnError.
package influxdb
