package garage

import "errors"

var (
	// ErrUnrecognizedCommand is reported for a payload that is not OPEN, CLOSE or STOP.
	ErrUnrecognizedCommand = errors.New("garage: unrecognized command")

	// ErrStopUnsupported is reported for STOP. The opener only has a single
	// push-button input, so there is no way to halt travel.
	ErrStopUnsupported = errors.New("garage: stop is not supported by the opener")

	// ErrQueueFull is reported when a command arrives while the door's
	// actuation queue is saturated.
	ErrQueueFull = errors.New("garage: actuation queue full")

	// ErrInvalidDoor is returned by NewDoor for an unusable configuration.
	ErrInvalidDoor = errors.New("garage: invalid door configuration")

	// ErrStopped is returned by operations on a stopped door.
	ErrStopped = errors.New("garage: door stopped")
)
