package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/garagepi/internal/infrastructure/config"
)

// ConnState is the broker connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Logger interface for logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Client wraps paho.mqtt.golang as the single broker connection of the controller.
//
// It owns the subscription set and the topic→handler table, serializes
// publishes, and reports CONNACK outcomes in human-readable form.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - At most one publish is in flight at any time.
//   - Subscriptions are restored on every (re)connect.
type Client struct {
	client    pahomqtt.Client
	options   *pahomqtt.ClientOptions
	cfg       config.MQTTConfig
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client
	sleep     func(ctx context.Context, d time.Duration) error

	// subscriptions is the set of topics to (re)subscribe on connect.
	subscriptions map[string]struct{}
	handlers      map[string]Handler
	middleware    []Middleware
	subMu         sync.RWMutex

	state      ConnState
	lastResult ConnectResult
	closed     bool
	connMu     sync.RWMutex

	// pubMu serializes the send and acknowledgement wait of every publish.
	pubMu sync.Mutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger Logger
}

// New creates a Client for the configured broker. It does not connect.
func New(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	if cfg.Broker.Host == "" || cfg.Broker.Port <= 0 {
		return nil, fmt.Errorf("%w: %q:%d", ErrInvalidBroker, cfg.Broker.Host, cfg.Broker.Port)
	}
	if logger == nil {
		logger = nopLogger{}
	}

	c := &Client{
		cfg:           cfg,
		options:       buildClientOptions(cfg),
		newClient:     pahomqtt.NewClient,
		sleep:         sleepContext,
		subscriptions: make(map[string]struct{}),
		handlers:      make(map[string]Handler),
		logger:        logger,
	}
	c.middleware = []Middleware{Recover(logger), LogReceived(logger)}

	c.options.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	c.options.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.setState(StateConnecting)
		c.logger.Info("MQTT reconnecting", "broker", brokerURL(c.cfg.Broker))
	})
	c.options.SetDefaultPublishHandler(c.dispatch)

	return c, nil
}

// Use appends middleware applied to every inbound message.
// Recover and LogReceived are always installed first.
func (c *Client) Use(mws ...Middleware) {
	c.subMu.Lock()
	c.middleware = append(c.middleware, mws...)
	c.subMu.Unlock()
}

// Connect establishes the broker connection.
//
// Each attempt moves the client DISCONNECTED → CONNECTING → CONNECTED, or back
// to DISCONNECTED with the refusal logged. Transport failures and "server
// unavailable" are retried with exponential backoff up to
// cfg.Reconnect.MaxAttempts; other refusals return immediately.
//
// Returns:
//   - error: *ConnectError (matches ErrConnectionFailed) on final failure
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		return ErrClosed
	}
	if c.client == nil {
		c.client = c.newClient(c.options)
	}
	c.connMu.Unlock()

	attempts := c.cfg.Reconnect.MaxAttempts
	if !c.cfg.Reconnect.Enabled || attempts < 1 {
		attempts = 1
	}
	delay := seconds(c.cfg.Reconnect.InitialDelay, time.Second)
	maxDelay := seconds(c.cfg.Reconnect.MaxDelay, time.Minute)

	for attempt := 1; ; attempt++ {
		err := c.connectOnce(attempt)
		if err == nil {
			return nil
		}

		result := c.LastConnectResult()
		if !result.Retryable() || attempt >= attempts {
			return err
		}

		c.logger.Info("MQTT retrying connection", "attempt", attempt+1, "max_attempts", attempts, "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		delay = min(delay*2, maxDelay)
	}
}

func (c *Client) connectOnce(attempt int) error {
	c.setState(StateConnecting)
	c.logger.Info("MQTT connecting", "broker", brokerURL(c.cfg.Broker), "client_id", c.cfg.Broker.ClientID, "attempt", attempt)

	token := c.client.Connect()
	var result ConnectResult
	if !token.WaitTimeout(defaultConnectTimeout) {
		result = transportResult(fmt.Errorf("%w after %v", ErrTimeout, defaultConnectTimeout))
	} else {
		result = resultFromToken(token)
	}

	c.connMu.Lock()
	c.lastResult = result
	if result.Accepted() && c.state != StateConnected {
		c.state = StateConnected
	}
	c.connMu.Unlock()

	if result.Accepted() {
		c.logger.Info("MQTT connected", "broker", brokerURL(c.cfg.Broker), "reason", result.Reason)
		return nil
	}

	c.setState(StateDisconnected)
	c.logger.Error("MQTT connection refused",
		"code", result.Code,
		"reason", result.Reason,
		"attempt", attempt,
	)
	return &ConnectError{Result: result, Err: token.Error()}
}

// handleConnect is called by paho on every successful (re)connect.
func (c *Client) handleConnect() {
	c.setState(StateConnected)
	c.restoreSubscriptions()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called by paho when an established connection drops.
func (c *Client) handleDisconnect(err error) {
	c.setState(StateDisconnected)
	c.logger.Warn("MQTT connection lost", "error", err)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions subscribes every tracked topic.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	c.subMu.RUnlock()

	for _, topic := range topics {
		if err := c.subscribeBroker(topic); err != nil {
			c.logger.Warn("MQTT resubscribe failed", "topic", topic, "error", err)
		}
	}
}

// Close disconnects from the broker. It is safe to call more than once.
func (c *Client) Close() error {
	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		return nil
	}
	c.closed = true
	client := c.client
	c.state = StateDisconnected
	c.connMu.Unlock()

	if client == nil {
		return nil
	}

	// Let an in-flight publish finish before tearing the connection down.
	c.pubMu.Lock()
	client.Disconnect(defaultDisconnectQuiesce)
	c.pubMu.Unlock()

	c.logger.Info("MQTT disconnected")
	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.state
}

// IsConnected reports whether the client is connected and the transport is up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.state == StateConnected && c.client != nil && c.client.IsConnectionOpen()
}

// LastConnectResult returns the outcome of the most recent connection attempt.
func (c *Client) LastConnectResult() ConnectResult {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.lastResult
}

func (c *Client) setState(s ConnState) {
	c.connMu.Lock()
	if !c.closed || s == StateDisconnected {
		c.state = s
	}
	c.connMu.Unlock()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
