package gpio

import (
	"errors"
	"time"
)

// Level is a digital pin level.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Event is an edge observed on an input pin.
type Event struct {
	Pin   int
	Level Level
	// Timestamp is the kernel event time where available, otherwise wall time.
	Timestamp time.Duration
}

// EdgeHandler is invoked on the driver's goroutine for every edge.
// It must not block.
type EdgeHandler func(Event)

// Pull selects the input bias.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// InputOptions configures an input line.
type InputOptions struct {
	Pull     Pull
	Debounce time.Duration
}

// Input is a readable digital line.
type Input interface {
	Read() (Level, error)
	Close() error
}

// Output is a writable digital line.
type Output interface {
	Set(Level) error
	Close() error
}

// PWM is a pulse-width modulated output.
type PWM interface {
	// SetDuty sets the duty cycle in percent, clamped to [0, 100].
	SetDuty(percent float64) error
	Close() error
}

// Chip hands out digital lines. Each pin may be requested once.
type Chip interface {
	Input(pin int, opts InputOptions, onEdge EdgeHandler) (Input, error)
	Output(pin int, initial Level) (Output, error)
	Close() error
}

var (
	// ErrPinInUse is returned when a pin is requested twice.
	ErrPinInUse = errors.New("gpio: pin already requested")

	// ErrClosed is returned by operations on a released line or chip.
	ErrClosed = errors.New("gpio: line closed")

	// ErrUnknownPin is returned when a pin name cannot be resolved.
	ErrUnknownPin = errors.New("gpio: unknown pin")
)

func clampDuty(percent float64) float64 {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
