package influxdb

import "errors"

// Sentinel errors returned by the telemetry exporter. Point writes are
// asynchronous and never return an error; failures surface through the
// callback set with SetOnError.
var (
	// ErrDisabled is returned by Connect when export is switched off, so the
	// caller can run without it.
	ErrDisabled = errors.New("influxdb: export disabled")

	// ErrConnectionFailed wraps a failed or unhealthy ping at startup.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
