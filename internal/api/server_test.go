package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/garagepi/internal/garage"
	"github.com/nerrad567/garagepi/internal/indicator"
	"github.com/nerrad567/garagepi/internal/infrastructure/config"
	"github.com/nerrad567/garagepi/internal/infrastructure/logging"
	"github.com/nerrad567/garagepi/internal/infrastructure/mqtt"
	"github.com/nerrad567/garagepi/internal/metrics"
	"github.com/nerrad567/garagepi/internal/sensor"
)

type stubBroker struct {
	state mqtt.ConnState
	subs  int
}

func (b *stubBroker) State() mqtt.ConnState  { return b.state }
func (b *stubBroker) SubscriptionCount() int { return b.subs }
func (b *stubBroker) LastConnectResult() mqtt.ConnectResult {
	return mqtt.ConnectResult{Code: mqtt.CodeAccepted, Reason: mqtt.DescribeConnack(mqtt.CodeAccepted)}
}

type stubDoors []garage.Status

func (d stubDoors) Statuses() []garage.Status { return d }

type stubClimate struct {
	reading sensor.Reading
	ok      bool
}

func (c stubClimate) Latest() (sensor.Reading, time.Time, bool) {
	return c.reading, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), c.ok
}

type stubIndicator struct{}

func (stubIndicator) Color() indicator.Color { return indicator.Green }

func testServer(t *testing.T, broker *stubBroker) (*Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0, Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}},
		Logger: logging.Discard(),
		Broker: broker,
		Doors: stubDoors{
			{ID: 1, State: "closed"},
			{ID: 2, State: "open", LastCommand: "OPEN", Actuations: 3},
		},
		Climate:   stubClimate{reading: sensor.Reading{Celsius: 21.5, Humidity: 45.2}, ok: true},
		Indicator: stubIndicator{},
		Metrics:   m,
		Version:   "1.2.3",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, m
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{Broker: &stubBroker{}}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without broker should fail")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		state      mqtt.ConnState
		wantStatus int
		wantBody   string
	}{
		{mqtt.StateConnected, http.StatusOK, "ok"},
		{mqtt.StateConnecting, http.StatusServiceUnavailable, "degraded"},
		{mqtt.StateDisconnected, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			srv, _ := testServer(t, &stubBroker{state: tt.state})
			rec := do(t, srv.buildRouter(), "/api/v1/health")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantBody || body.MQTT != tt.state.String() {
				t.Errorf("body = %+v", body)
			}
			if body.Version != "1.2.3" || body.BootID == "" {
				t.Errorf("body = %+v, want version and boot id", body)
			}
		})
	}
}

func TestMetricsJSON(t *testing.T) {
	srv, _ := testServer(t, &stubBroker{state: mqtt.StateConnected, subs: 2})
	rec := do(t, srv.buildRouter(), "/api/v1/metrics")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body SystemMetrics
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.MQTT.Connected || body.MQTT.Subscriptions != 2 || body.MQTT.LastConnack != "Connection successful" {
		t.Errorf("mqtt = %+v", body.MQTT)
	}
	if len(body.Doors) != 2 || body.Doors[1].Actuations != 3 {
		t.Errorf("doors = %+v", body.Doors)
	}
	if body.Climate == nil || body.Climate.TemperatureF != "70.7" || body.Climate.Humidity != "45.2" {
		t.Errorf("climate = %+v", body.Climate)
	}
	if body.Indicator != "green" {
		t.Errorf("indicator = %q, want green", body.Indicator)
	}
	if body.Runtime.Goroutines == 0 {
		t.Error("runtime.goroutines = 0")
	}
}

func TestDoors(t *testing.T) {
	srv, _ := testServer(t, &stubBroker{state: mqtt.StateConnected})
	h := srv.buildRouter()

	tests := []struct {
		path       string
		wantStatus int
		wantSub    string
	}{
		{"/api/v1/doors", http.StatusOK, `"state":"open"`},
		{"/api/v1/doors/2", http.StatusOK, `"last_command":"OPEN"`},
		{"/api/v1/doors/9", http.StatusNotFound, ErrCodeNotFound},
		{"/api/v1/doors/abc", http.StatusBadRequest, ErrCodeBadRequest},
		{"/api/v1/nothing", http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, h, tt.path)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantSub) {
				t.Errorf("body = %s, want it to contain %s", rec.Body.String(), tt.wantSub)
			}
		})
	}
}

func TestPrometheusAndRequestCounting(t *testing.T) {
	srv, _ := testServer(t, &stubBroker{state: mqtt.StateConnected})
	h := srv.buildRouter()

	do(t, h, "/api/v1/doors/1")
	do(t, h, "/api/v1/doors/2")

	rec := do(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := `garagepi_http_requests_total{method="GET",route="/api/v1/doors/{id}",status="200"} 2`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("exposition missing %s", want)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, &stubBroker{state: mqtt.StateConnected})
	h := srv.buildRouter()

	rec := do(t, h, "/api/v1/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc123" {
		t.Errorf("X-Request-ID = %q, want abc123", got)
	}
}

func TestStartClose(t *testing.T) {
	srv, _ := testServer(t, &stubBroker{state: mqtt.StateConnected})

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("health = %d %s", resp.StatusCode, body)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
