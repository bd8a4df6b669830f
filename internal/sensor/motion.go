package sensor

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/nerrad567/garagepi/internal/infrastructure/gpio"
	"github.com/nerrad567/garagepi/internal/telemetry"
)

// motionQueueSize bounds transitions waiting to be published.
const motionQueueSize = 32

// MotionOptions configures a MotionSensor.
type MotionOptions struct {
	Pin       int
	Chip      gpio.Chip
	Publisher Publisher
	Topic     string
	Retain    bool

	Recorder telemetry.Recorder
	Logger   Logger
}

// MotionSensor publishes the PIR level ("0" or "1") on every transition.
//
// Edges are handed from the GPIO driver to a publishing goroutine so the
// driver is never blocked on the broker.
type MotionSensor struct {
	publisher Publisher
	topic     string
	retain    bool
	recorder  telemetry.Recorder
	logger    Logger

	line   gpio.Input
	levels chan gpio.Level

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	mu    sync.Mutex
	level gpio.Level
}

// NewMotionSensor claims the PIR input pin.
func NewMotionSensor(opts MotionOptions) (*MotionSensor, error) {
	if opts.Chip == nil || opts.Publisher == nil {
		return nil, fmt.Errorf("sensor: motion sensor needs a chip and a publisher")
	}
	if opts.Recorder == nil {
		opts.Recorder = telemetry.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	m := &MotionSensor{
		publisher: opts.Publisher,
		topic:     opts.Topic,
		retain:    opts.Retain,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		levels:    make(chan gpio.Level, motionQueueSize),
		done:      make(chan struct{}),
	}

	line, err := opts.Chip.Input(opts.Pin, gpio.InputOptions{Pull: gpio.PullDown}, m.onEdge)
	if err != nil {
		return nil, fmt.Errorf("motion pin: %w", err)
	}
	m.line = line
	return m, nil
}

// Start publishes the current level and begins forwarding transitions.
func (m *MotionSensor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		level, err := m.line.Read()
		if err != nil {
			m.logger.Warn("failed to read motion sensor", "error", err)
			m.recorder.SensorReadFailed("pir")
		} else {
			m.setLevel(level)
			m.publish(level)
		}

		m.wg.Add(1)
		go m.loop(ctx)
	})
}

// Stop stops publishing and releases the pin.
func (m *MotionSensor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		m.line.Close()
	})
}

// Level returns the last observed PIR level.
func (m *MotionSensor) Level() gpio.Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *MotionSensor) setLevel(level gpio.Level) {
	m.mu.Lock()
	m.level = level
	m.mu.Unlock()
}

func (m *MotionSensor) onEdge(ev gpio.Event) {
	select {
	case m.levels <- ev.Level:
	default:
		m.logger.Warn("motion transition dropped, queue full", "level", ev.Level.String())
	}
}

func (m *MotionSensor) loop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case level := <-m.levels:
			m.setLevel(level)
			m.recorder.Motion(int(level))
			m.publish(level)
		}
	}
}

func (m *MotionSensor) publish(level gpio.Level) {
	payload := strconv.Itoa(int(level))
	var err error
	if m.retain {
		err = m.publisher.PublishRetained(m.topic, payload)
	} else {
		err = m.publisher.Publish(m.topic, payload)
	}
	if err != nil {
		m.logger.Warn("motion publish failed", "topic", m.topic, "error", err)
	}
}
