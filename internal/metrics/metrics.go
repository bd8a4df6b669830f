// Package metrics exposes controller activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "garagepi"

// Metrics holds the collectors on a private registry.
// It implements telemetry.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	doorOpen       *prometheus.GaugeVec
	actuations     *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	temperature    prometheus.Gauge
	humidity       prometheus.Gauge
	motion         prometheus.Gauge
	motionEvents   prometheus.Counter
	sensorFailures *prometheus.CounterVec
	mqttConnected  prometheus.Gauge
	httpRequests   *prometheus.CounterVec
}

// New registers all collectors, plus Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		doorOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "door_open",
			Help:      "1 when the door reports open, 0 when closed, -1 when unknown.",
		}, []string{"door"}),
		actuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "door_actuations_total",
			Help:      "Relay pulses by door and command.",
		}, []string{"door", "command"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "door_commands_rejected_total",
			Help:      "Commands that caused no actuation, by door and reason.",
		}, []string{"door", "reason"}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_fahrenheit",
			Help:      "Last temperature reading.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last relative humidity reading.",
		}),
		motion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "motion",
			Help:      "Current PIR level.",
		}),
		motionEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "motion_transitions_total",
			Help:      "PIR level transitions.",
		}),
		sensorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_read_failures_total",
			Help:      "Skipped poll cycles by sensor.",
		}, []string{"sensor"}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the broker connection is up.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Status API requests by route, method and status.",
		}, []string{"route", "method", "status"}),
	}

	m.registry.MustRegister(
		m.doorOpen, m.actuations, m.rejected,
		m.temperature, m.humidity, m.motion, m.motionEvents,
		m.sensorFailures, m.mqttConnected, m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) DoorState(door int, state string) {
	v := -1.0
	switch state {
	case "open":
		v = 1
	case "closed":
		v = 0
	}
	m.doorOpen.WithLabelValues(strconv.Itoa(door)).Set(v)
}

func (m *Metrics) DoorActuation(door int, command string) {
	m.actuations.WithLabelValues(strconv.Itoa(door), command).Inc()
}

func (m *Metrics) CommandRejected(door int, reason string) {
	m.rejected.WithLabelValues(strconv.Itoa(door), reason).Inc()
}

func (m *Metrics) Climate(temperatureF, humidity float64) {
	m.temperature.Set(temperatureF)
	m.humidity.Set(humidity)
}

func (m *Metrics) Motion(level int) {
	m.motion.Set(float64(level))
	m.motionEvents.Inc()
}

func (m *Metrics) SensorReadFailed(sensor string) {
	m.sensorFailures.WithLabelValues(sensor).Inc()
}

// SetMQTTConnected records the broker connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	if connected {
		m.mqttConnected.Set(1)
		return
	}
	m.mqttConnected.Set(0)
}

// ObserveHTTP counts one request.
func (m *Metrics) ObserveHTTP(route, method string, status int) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
