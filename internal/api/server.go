package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/garagepi/internal/garage"
	"github.com/nerrad567/garagepi/internal/indicator"
	"github.com/nerrad567/garagepi/internal/infrastructure/config"
	"github.com/nerrad567/garagepi/internal/infrastructure/logging"
	"github.com/nerrad567/garagepi/internal/infrastructure/mqtt"
	"github.com/nerrad567/garagepi/internal/sensor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Broker reports the MQTT connection.
type Broker interface {
	State() mqtt.ConnState
	SubscriptionCount() int
	LastConnectResult() mqtt.ConnectResult
}

// Doors lists door status.
type Doors interface {
	Statuses() []garage.Status
}

// Climate returns the last climate reading.
type Climate interface {
	Latest() (sensor.Reading, time.Time, bool)
}

// Indicator reports the LED colour.
type Indicator interface {
	Color() indicator.Color
}

// Observer exposes Prometheus metrics and counts requests.
type Observer interface {
	Handler() http.Handler
	ObserveHTTP(route, method string, status int)
}

// Deps holds the dependencies required by the API server. Only Logger and
// Broker are required.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Broker    Broker
	Doors     Doors
	Climate   Climate
	Indicator Indicator
	Metrics   Observer
	Version   string
}

// Server is the read-only status API.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	broker    Broker
	doors     Doors
	climate   Climate
	indicator Indicator
	metrics   Observer
	version   string
	bootID    string
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Broker == nil {
		return nil, fmt.Errorf("broker is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		broker:    deps.Broker,
		doors:     deps.Doors,
		climate:   deps.Climate,
		indicator: deps.Indicator,
		metrics:   deps.Metrics,
		version:   deps.Version,
		bootID:    uuid.NewString(),
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close shuts the server down, waiting up to 10 seconds for in-flight
// requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
