package mqtt

import (
	"errors"
	"fmt"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when a connection attempt fails or is refused.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrInvalidBroker is returned by New when the broker address is unusable.
	ErrInvalidBroker = errors.New("mqtt: invalid broker address")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")

	// ErrClosed is returned when the client has been closed.
	ErrClosed = errors.New("mqtt: client closed")
)

// ConnectError describes a failed connection attempt.
// It matches ErrConnectionFailed and the underlying transport error via errors.Is.
type ConnectError struct {
	Result ConnectResult
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (code %d): %v", ErrConnectionFailed, e.Result.Reason, e.Result.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s (code %d)", ErrConnectionFailed, e.Result.Reason, e.Result.Code)
}

func (e *ConnectError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnectionFailed}
	}
	return []error{ErrConnectionFailed, e.Err}
}
