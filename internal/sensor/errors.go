package sensor

import "errors"

var (
	// ErrSensorRead is returned when a reading could not be taken. Pollers
	// skip the cycle and try again on the next interval.
	ErrSensorRead = errors.New("sensor: read failed")

	// ErrNoReader is returned when a poller is built without a reader.
	ErrNoReader = errors.New("sensor: no reader")
)
