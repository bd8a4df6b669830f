package garage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/garagepi/internal/indicator"
	"github.com/nerrad567/garagepi/internal/infrastructure/gpio"
	"github.com/nerrad567/garagepi/internal/infrastructure/mqtt"
	"github.com/nerrad567/garagepi/internal/telemetry"
)

// Door timing and queue defaults.
const (
	// DefaultPulse is how long the relay holds the opener button.
	DefaultPulse = 500 * time.Millisecond

	// DefaultSettle is the pause after a pulse before the door accepts the next one.
	DefaultSettle = time.Second

	// defaultQueueSize bounds pending commands per door.
	defaultQueueSize = 8

	// reedDebounce filters contact bounce on the state switch.
	reedDebounce = 50 * time.Millisecond
)

// Availability payloads.
const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Broker is the subset of the MQTT client a door needs.
type Broker interface {
	Publish(topic, payload string) error
	PublishRetained(topic, payload string) error
	Subscribe(topic string) error
	RegisterCallback(topic string, handler mqtt.Handler) error
}

// Indicator shows command feedback.
type Indicator interface {
	SetColor(c indicator.Color) error
}

// Logger interface for logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DoorOptions configures a door.
type DoorOptions struct {
	ID         int
	ControlPin int
	StatePin   int

	// ClosedLevel is the state pin level that means closed. Default High.
	ClosedLevel gpio.Level
	PullUp      bool

	// Pulse and Settle fall back to DefaultPulse and DefaultSettle when
	// zero or negative.
	Pulse     time.Duration
	Settle    time.Duration
	QueueSize int

	// Retain publishes state as retained messages.
	Retain bool
	// PublishAvailability drives the availability topic.
	PublishAvailability bool

	Chip      gpio.Chip
	Broker    Broker
	Topics    mqtt.Topics
	Indicator Indicator
	Recorder  telemetry.Recorder
	Logger    Logger
}

// Status is a point-in-time view of a door.
type Status struct {
	ID           int       `json:"id"`
	State        string    `json:"state"`
	LastCommand  string    `json:"last_command,omitempty"`
	LastActuated time.Time `json:"last_actuated,omitzero"`
	Actuations   uint64    `json:"actuations"`
	QueueDepth   int       `json:"queue_depth"`
}

// Door controls one garage door: a relay on the opener's push-button and a
// reed switch reporting closed/open.
//
// Edge events and broker commands are handed over channels to two
// goroutines owned by the door, so relay pulses are strictly serialized and
// edge handlers never block the GPIO driver.
//
// Thread Safety: All methods are safe for concurrent use.
type Door struct {
	id          int
	closedLevel gpio.Level
	pulse       time.Duration
	settle      time.Duration
	retain      bool
	available   bool

	control   gpio.Output
	sensor    gpio.Input
	broker    Broker
	indicator Indicator
	recorder  telemetry.Recorder
	logger    Logger

	commandTopic      string
	stateTopic        string
	availabilityTopic string

	// edges coalesces state-pin edges; the watcher re-reads the pin so none are lost.
	edges    chan struct{}
	force    atomic.Bool
	commands chan Command

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	mu           sync.Mutex
	state        State
	published    State
	hasPublished bool
	lastCommand  string
	lastActuated time.Time
	actuations   uint64
}

// NewDoor claims the door's pins, registers its command handler and
// publishes the initial state.
func NewDoor(opts DoorOptions) (*Door, error) {
	if opts.ID < 1 || opts.Chip == nil || opts.Broker == nil {
		return nil, fmt.Errorf("%w: id %d", ErrInvalidDoor, opts.ID)
	}
	if opts.Pulse <= 0 {
		opts.Pulse = DefaultPulse
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Topics.Prefix == "" {
		opts.Topics = mqtt.NewTopics("")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Indicator == nil {
		opts.Indicator = indicator.Disabled()
	}
	if opts.Recorder == nil {
		opts.Recorder = telemetry.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	d := &Door{
		id:                opts.ID,
		closedLevel:       opts.ClosedLevel,
		pulse:             opts.Pulse,
		settle:            opts.Settle,
		retain:            opts.Retain,
		available:         opts.PublishAvailability,
		broker:            opts.Broker,
		indicator:         opts.Indicator,
		recorder:          opts.Recorder,
		logger:            opts.Logger,
		commandTopic:      opts.Topics.CoverCommand(opts.ID),
		stateTopic:        opts.Topics.CoverState(opts.ID),
		availabilityTopic: opts.Topics.CoverAvailability(opts.ID),
		edges:             make(chan struct{}, 1),
		commands:          make(chan Command, opts.QueueSize),
		done:              make(chan struct{}),
	}

	control, err := opts.Chip.Output(opts.ControlPin, gpio.Low)
	if err != nil {
		return nil, fmt.Errorf("door %d control pin: %w", opts.ID, err)
	}
	d.control = control

	pull := gpio.PullNone
	if opts.PullUp {
		pull = gpio.PullUp
	}
	sensor, err := opts.Chip.Input(opts.StatePin, gpio.InputOptions{Pull: pull, Debounce: reedDebounce}, d.onEdge)
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("door %d state pin: %w", opts.ID, err)
	}
	d.sensor = sensor

	if err := d.broker.RegisterCallback(d.commandTopic, d.onCommand); err != nil {
		d.release()
		return nil, fmt.Errorf("door %d: %w", opts.ID, err)
	}
	if err := d.broker.Subscribe(d.commandTopic); err != nil {
		d.release()
		return nil, fmt.Errorf("door %d: %w", opts.ID, err)
	}

	d.refresh(true)

	d.logger.Info("door initialised",
		"command_topic", d.commandTopic,
		"state_topic", d.stateTopic,
		"state", d.State().String(),
	)
	return d, nil
}

// ID returns the door number.
func (d *Door) ID() int {
	return d.id
}

// Start launches the state watcher and the actuation worker.
func (d *Door) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.wg.Add(2)
		go d.watchLoop()
		go d.actuateLoop(ctx)

		if d.available {
			d.publish(d.availabilityTopic, payloadOnline)
		}
	})
}

// Stop waits for an in-flight actuation, drops queued commands and releases
// the door's pins. It is safe to call more than once.
func (d *Door) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.wg.Wait()

		if n := len(d.commands); n > 0 {
			d.logger.Warn("dropping queued commands on shutdown", "count", n)
		}
		if d.available {
			d.publish(d.availabilityTopic, payloadOffline)
		}
		d.release()
	})
}

func (d *Door) release() {
	if d.control != nil {
		if err := d.control.Set(gpio.Low); err != nil {
			d.logger.Error("failed to release relay", "error", err)
		}
		d.control.Close()
	}
	if d.sensor != nil {
		d.sensor.Close()
	}
}

// State returns the last observed door state.
func (d *Door) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Status returns a snapshot for status reporting.
func (d *Door) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		ID:           d.id,
		State:        d.state.String(),
		LastCommand:  d.lastCommand,
		LastActuated: d.lastActuated,
		Actuations:   d.actuations,
		QueueDepth:   len(d.commands),
	}
}

// Republish re-sends the current state even if unchanged. Used after a
// broker reconnect, when retained state may have been lost.
func (d *Door) Republish() {
	d.force.Store(true)
	d.signal()
	if d.available {
		d.publish(d.availabilityTopic, payloadOnline)
	}
}

// onEdge runs on the GPIO driver's goroutine and only signals the watcher.
func (d *Door) onEdge(gpio.Event) {
	d.signal()
}

func (d *Door) signal() {
	select {
	case d.edges <- struct{}{}:
	default:
	}
}

func (d *Door) watchLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case <-d.edges:
			d.refresh(d.force.Swap(false))
		}
	}
}

// refresh reads the state pin and publishes the derived state if it changed
// since the last successful publish, or unconditionally when force is set.
func (d *Door) refresh(force bool) {
	level, err := d.sensor.Read()
	if err != nil {
		d.mu.Lock()
		d.state = StateUnknown
		d.mu.Unlock()
		d.logger.Warn("failed to read door state", "error", err)
		return
	}

	state := StateOpen
	if level == d.closedLevel {
		state = StateClosed
	}

	d.mu.Lock()
	changed := state != d.state
	d.state = state
	skip := !force && d.hasPublished && d.published == state
	d.mu.Unlock()

	if changed {
		d.logger.Info("door state changed", "state", state.String(), "level", level.String())
	}
	if skip {
		return
	}

	if err := d.publish(d.stateTopic, state.String()); err != nil {
		return
	}

	d.mu.Lock()
	d.published = state
	d.hasPublished = true
	d.mu.Unlock()
	d.recorder.DoorState(d.id, state.String())
}

func (d *Door) publish(topic, payload string) error {
	var err error
	if d.retain {
		err = d.broker.PublishRetained(topic, payload)
	} else {
		err = d.broker.Publish(topic, payload)
	}
	if err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		d.logger.Warn("publish failed", "topic", topic, "error", err)
	}
	return err
}

// onCommand runs on the broker's dispatch goroutine. Actuating commands are
// queued; everything else is logged and dropped here.
func (d *Door) onCommand(msg mqtt.Message) {
	cmd := ParseCommand(msg.Payload)

	switch cmd.Kind {
	case CommandUnrecognized:
		d.logger.Warn("ignoring command", "topic", msg.Topic, "payload", msg.Payload, "error", ErrUnrecognizedCommand)
		d.recorder.CommandRejected(d.id, "unrecognized")
		return
	case CommandStop:
		d.logger.Warn("ignoring command", "command", cmd.Kind.String(), "error", ErrStopUnsupported)
		d.recorder.CommandRejected(d.id, "stop_unsupported")
		return
	}

	select {
	case <-d.done:
		d.logger.Warn("ignoring command", "command", cmd.Kind.String(), "error", ErrStopped)
	case d.commands <- cmd:
		d.logger.Debug("command queued", "command", cmd.Kind.String())
	default:
		d.logger.Warn("ignoring command", "command", cmd.Kind.String(), "error", ErrQueueFull)
		d.recorder.CommandRejected(d.id, "queue_full")
	}
}

func (d *Door) actuateLoop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case cmd := <-d.commands:
			d.actuate(cmd)
		}
	}
}

// actuate sets the indicator for cmd and pulses the relay.
func (d *Door) actuate(cmd Command) {
	color := indicator.Green
	if cmd.Kind == CommandClose {
		color = indicator.Red
	}
	if err := d.indicator.SetColor(color); err != nil {
		d.logger.Warn("failed to set indicator", "color", color.String(), "error", err)
	}

	d.logger.Info("actuating door", "command", cmd.Kind.String(), "state", d.State().String())
	if err := d.pushButton(); err != nil {
		d.logger.Error("door actuation failed", "command", cmd.Kind.String(), "error", err)
		return
	}

	d.mu.Lock()
	d.lastCommand = cmd.Kind.String()
	d.lastActuated = time.Now()
	d.actuations++
	d.mu.Unlock()
	d.recorder.DoorActuation(d.id, cmd.Kind.String())

	// The door is moving now; the reed switch edge will follow, but re-read
	// in case it was missed.
	d.signal()
}

// pushButton drives the relay high for the pulse duration, releases it and
// waits out the settle time. The pulse always completes; the settle wait
// ends early on Stop.
func (d *Door) pushButton() error {
	if err := d.control.Set(gpio.High); err != nil {
		return fmt.Errorf("pressing button: %w", err)
	}
	time.Sleep(d.pulse)
	if err := d.control.Set(gpio.Low); err != nil {
		// A stuck relay holds the opener button; try once more before giving up.
		if retryErr := d.control.Set(gpio.Low); retryErr != nil {
			return fmt.Errorf("releasing button: %w", errors.Join(err, retryErr))
		}
	}

	if d.settle > 0 {
		timer := time.NewTimer(d.settle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-d.done:
		}
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
