// Package telemetry defines the observation hooks the controller emits.
//
// Domain packages report what happened through a Recorder; sinks such as
// Prometheus metrics or an InfluxDB exporter implement it.
package telemetry

// Recorder receives controller events. Implementations must be safe for
// concurrent use and must not block.
type Recorder interface {
	// DoorState is called when a door state is published.
	DoorState(door int, state string)
	// DoorActuation is called after a relay pulse for command.
	DoorActuation(door int, command string)
	// CommandRejected is called for a command that caused no actuation.
	CommandRejected(door int, reason string)
	// Climate is called after a successful sensor reading.
	Climate(temperatureF, humidity float64)
	// Motion is called on every PIR transition.
	Motion(level int)
	// SensorReadFailed is called when a poll cycle is skipped.
	SensorReadFailed(sensor string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) DoorState(int, string)       {}
func (Nop) DoorActuation(int, string)   {}
func (Nop) CommandRejected(int, string) {}
func (Nop) Climate(float64, float64)    {}
func (Nop) Motion(int)                  {}
func (Nop) SensorReadFailed(string)     {}

// Multi fans every event out to each recorder in order.
type Multi []Recorder

// NewMulti drops nil recorders. It returns Nop when none remain.
func NewMulti(recorders ...Recorder) Recorder {
	var m Multi
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	if len(m) == 0 {
		return Nop{}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m Multi) DoorState(door int, state string) {
	for _, r := range m {
		r.DoorState(door, state)
	}
}

func (m Multi) DoorActuation(door int, command string) {
	for _, r := range m {
		r.DoorActuation(door, command)
	}
}

func (m Multi) CommandRejected(door int, reason string) {
	for _, r := range m {
		r.CommandRejected(door, reason)
	}
}

func (m Multi) Climate(temperatureF, humidity float64) {
	for _, r := range m {
		r.Climate(temperatureF, humidity)
	}
}

func (m Multi) Motion(level int) {
	for _, r := range m {
		r.Motion(level)
	}
}

func (m Multi) SensorReadFailed(sensor string) {
	for _, r := range m {
		r.SensorReadFailed(sensor)
	}
}
