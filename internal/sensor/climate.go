package sensor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/garagepi/internal/telemetry"
	"github.com/nerrad567/garagepi/internal/worker"
)

// Climate poller defaults.
const (
	DefaultPollInterval = 60 * time.Second
	DefaultRetries      = 15
	DefaultRetryDelay   = 2 * time.Second

	climateSensorName = "dht22"
)

// Reading is one temperature/humidity sample.
type Reading struct {
	// Celsius is the temperature in degrees Celsius.
	Celsius float64
	// Humidity is relative humidity in percent.
	Humidity float64
}

// Fahrenheit returns the temperature in degrees Fahrenheit.
func (r Reading) Fahrenheit() float64 {
	return FahrenheitFromCelsius(r.Celsius)
}

// ClimateReader takes a single temperature/humidity reading.
type ClimateReader interface {
	Read(ctx context.Context) (Reading, error)
}

// ClimateReaderFunc adapts a function to ClimateReader.
type ClimateReaderFunc func(ctx context.Context) (Reading, error)

// Read implements ClimateReader.
func (f ClimateReaderFunc) Read(ctx context.Context) (Reading, error) {
	return f(ctx)
}

// Publisher is the subset of the MQTT client the sensors need.
type Publisher interface {
	Publish(topic, payload string) error
	PublishRetained(topic, payload string) error
}

// Logger interface for logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// FahrenheitFromCelsius converts c to degrees Fahrenheit.
func FahrenheitFromCelsius(c float64) float64 {
	return c*9/5 + 32
}

// FormatValue renders a reading with one fractional digit.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// RetryRead calls r up to attempts times, waiting delay between failures.
// It returns the first successful reading, or an error wrapping
// ErrSensorRead and the last failure.
func RetryRead(ctx context.Context, r ClimateReader, attempts int, delay time.Duration) (Reading, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return Reading{}, fmt.Errorf("%w: %w", ErrSensorRead, ctx.Err())
			case <-time.After(delay):
			}
		}

		reading, err := r.Read(ctx)
		if err == nil {
			return reading, nil
		}
		lastErr = err
	}
	return Reading{}, fmt.Errorf("%w after %d attempts: %w", ErrSensorRead, attempts, lastErr)
}

// ClimateOptions configures a ClimatePoller.
type ClimateOptions struct {
	Reader           ClimateReader
	Publisher        Publisher
	TemperatureTopic string
	HumidityTopic    string

	Interval   time.Duration
	Retries    int
	RetryDelay time.Duration
	Retain     bool

	Recorder telemetry.Recorder
	Logger   Logger
}

// ClimatePoller periodically reads the climate sensor and publishes
// temperature (°F) and humidity when they change.
type ClimatePoller struct {
	reader     ClimateReader
	publisher  Publisher
	tempTopic  string
	humTopic   string
	retries    int
	retryDelay time.Duration
	retain     bool
	recorder   telemetry.Recorder
	logger     Logger

	runner *worker.Runner

	mu       sync.Mutex
	lastTemp *float64
	lastHum  *float64
	latest   *Reading
	readAt   time.Time
}

// NewClimatePoller returns a poller. It does not start polling.
func NewClimatePoller(opts ClimateOptions) (*ClimatePoller, error) {
	if opts.Reader == nil {
		return nil, ErrNoReader
	}
	if opts.Publisher == nil {
		return nil, errors.New("sensor: no publisher")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Recorder == nil {
		opts.Recorder = telemetry.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	p := &ClimatePoller{
		reader:     opts.Reader,
		publisher:  opts.Publisher,
		tempTopic:  opts.TemperatureTopic,
		humTopic:   opts.HumidityTopic,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		retain:     opts.Retain,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
	}

	runner, err := worker.New("climate", opts.Interval, p.Poll)
	if err != nil {
		return nil, fmt.Errorf("creating climate runner: %w", err)
	}
	p.runner = runner
	return p, nil
}

// Start begins polling. The first reading is taken immediately.
func (p *ClimatePoller) Start(ctx context.Context) {
	p.runner.Start(ctx)
}

// Stop stops polling and waits for an in-flight reading to finish.
func (p *ClimatePoller) Stop() {
	p.runner.Join()
}

// Poll runs one cycle: read with retries, convert, publish what changed.
// A failed read skips the cycle.
func (p *ClimatePoller) Poll(ctx context.Context) {
	reading, err := RetryRead(ctx, p.reader, p.retries, p.retryDelay)
	if err != nil {
		p.logger.Debug("climate reading skipped", "error", err)
		p.recorder.SensorReadFailed(climateSensorName)
		return
	}

	tempF := reading.Fahrenheit()
	p.logger.Debug("climate reading",
		"temperature_f", FormatValue(tempF),
		"humidity", FormatValue(reading.Humidity),
	)

	p.mu.Lock()
	p.latest = &reading
	p.readAt = time.Now()
	p.mu.Unlock()
	p.recorder.Climate(tempF, reading.Humidity)

	p.publishIfChanged(p.tempTopic, tempF, &p.lastTemp)
	p.publishIfChanged(p.humTopic, reading.Humidity, &p.lastHum)
}

// publishIfChanged publishes v unless it equals the last value published
// successfully to topic.
func (p *ClimatePoller) publishIfChanged(topic string, v float64, last **float64) {
	p.mu.Lock()
	same := *last != nil && **last == v
	p.mu.Unlock()
	if same {
		return
	}

	var err error
	if p.retain {
		err = p.publisher.PublishRetained(topic, FormatValue(v))
	} else {
		err = p.publisher.Publish(topic, FormatValue(v))
	}
	if err != nil {
		p.logger.Warn("climate publish failed", "topic", topic, "error", err)
		return
	}

	p.mu.Lock()
	*last = &v
	p.mu.Unlock()
}

// Latest returns the last successful reading and when it was taken.
func (p *ClimatePoller) Latest() (Reading, time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return Reading{}, time.Time{}, false
	}
	return *p.latest, p.readAt, true
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
