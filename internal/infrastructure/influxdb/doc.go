// Package influxdb exports controller events to InfluxDB v2.
//
// The Client implements telemetry.Recorder: door states, actuations,
// rejected commands, climate readings and motion transitions become points
// tagged with the controller's host name.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, hostname)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; asynchronous write
// errors are delivered to the SetOnError callback.
package influxdb
