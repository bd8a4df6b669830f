package api

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/garagepi/internal/garage"
	"github.com/nerrad567/garagepi/internal/infrastructure/mqtt"
	"github.com/nerrad567/garagepi/internal/sensor"
)

// HealthResponse is returned by /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	MQTT    string `json:"mqtt"`
	Version string `json:"version"`
	BootID  string `json:"boot_id"`
}

// SystemMetrics is returned by /api/v1/metrics.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	BootID        string          `json:"boot_id"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Doors         []garage.Status `json:"doors"`
	Climate       *ClimateMetrics `json:"climate,omitempty"`
	Indicator     string          `json:"indicator,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains broker connection details.
type MQTTMetrics struct {
	Connected     bool   `json:"connected"`
	State         string `json:"state"`
	LastConnack   string `json:"last_connack,omitempty"`
	Subscriptions int    `json:"subscriptions"`
}

// ClimateMetrics is the last climate reading.
type ClimateMetrics struct {
	TemperatureF string `json:"temperature_f"`
	Humidity     string `json:"humidity"`
	ReadAt       string `json:"read_at"`
}

// handleHealth returns 200 while the broker connection is up, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.broker.State()
	resp := HealthResponse{
		Status:  "ok",
		MQTT:    state.String(),
		Version: s.version,
		BootID:  s.bootID,
	}

	status := http.StatusOK
	if state != mqtt.StateConnected {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleMetrics returns a JSON status snapshot.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	state := s.broker.State()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		BootID:        s.bootID,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		MQTT: MQTTMetrics{
			Connected:     state == mqtt.StateConnected,
			State:         state.String(),
			LastConnack:   s.broker.LastConnectResult().Reason,
			Subscriptions: s.broker.SubscriptionCount(),
		},
		Doors: []garage.Status{},
	}

	if s.doors != nil {
		metrics.Doors = s.doors.Statuses()
	}
	if s.climate != nil {
		if reading, at, ok := s.climate.Latest(); ok {
			metrics.Climate = &ClimateMetrics{
				TemperatureF: sensor.FormatValue(reading.Fahrenheit()),
				Humidity:     sensor.FormatValue(reading.Humidity),
				ReadAt:       at.UTC().Format(time.RFC3339),
			}
		}
	}
	if s.indicator != nil {
		metrics.Indicator = s.indicator.Color().String()
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleListDoors(w http.ResponseWriter, _ *http.Request) {
	doors := []garage.Status{}
	if s.doors != nil {
		doors = s.doors.Statuses()
	}
	writeJSON(w, http.StatusOK, map[string]any{"doors": doors})
}

func (s *Server) handleGetDoor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeBadRequest(w, "door id must be a positive integer")
		return
	}
	if s.doors != nil {
		for _, d := range s.doors.Statuses() {
			if d.ID == id {
				writeJSON(w, http.StatusOK, d)
				return
			}
		}
	}
	writeNotFound(w, "door not found")
}
