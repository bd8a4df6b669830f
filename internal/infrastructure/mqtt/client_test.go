package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/garagepi/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "garagepi-test",
		},
		QoS: 0,
		Reconnect: config.MQTTReconnectConfig{
			Enabled:      true,
			InitialDelay: 1,
			MaxDelay:     4,
			MaxAttempts:  3,
		},
	}
}

// newTestClient returns a Client backed by fake, with backoff sleeps recorded.
func newTestClient(t *testing.T, fake *fakePaho) (*Client, *recordingLogger, *[]time.Duration) {
	t.Helper()
	logger := &recordingLogger{}
	c, err := New(testConfig(), logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.newClient = fake.factory
	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, logger, &sleeps
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestNew_InvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Host = ""

	_, err := New(cfg, nil)
	if !errors.Is(err, ErrInvalidBroker) {
		t.Errorf("New() error = %v, want ErrInvalidBroker", err)
	}
}

func TestConnect(t *testing.T) {
	fake := newFakePaho()
	c, _, _ := newTestClient(t, fake)

	if got := c.State(); got != StateDisconnected {
		t.Errorf("State() before Connect = %v, want disconnected", got)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if got := c.State(); got != StateConnected {
		t.Errorf("State() = %v, want connected", got)
	}
	if got := c.LastConnectResult(); !got.Accepted() || got.Reason != "Connection successful" {
		t.Errorf("LastConnectResult() = %+v, want accepted", got)
	}
}

func TestConnect_BadCredentialsNotRetried(t *testing.T) {
	fake := newFakePaho(CodeBadCredentials)
	c, logger, sleeps := newTestClient(t, fake)

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}

	var ce *ConnectError
	if !errors.As(err, &ce) || ce.Result.Code != CodeBadCredentials {
		t.Errorf("Connect() error = %#v, want ConnectError with code 4", err)
	}
	if !logger.contains("bad username or password") {
		t.Error("log does not mention \"bad username or password\"")
	}
	if got := c.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", got)
	}
	if fake.connectCalls != 1 || len(*sleeps) != 0 {
		t.Errorf("connect attempts = %d, sleeps = %d, want 1 and 0", fake.connectCalls, len(*sleeps))
	}

	if err := c.Publish("hass/cover1/state", "open"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after refusal error = %v, want ErrNotConnected", err)
	}
	if n := len(fake.snapshot()); n != 0 {
		t.Errorf("publishes reached transport = %d, want 0", n)
	}
}

func TestConnect_RetriesServerUnavailable(t *testing.T) {
	fake := newFakePaho(CodeServerUnavailable, codeNetworkError, CodeAccepted)
	c, _, sleeps := newTestClient(t, fake)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if fake.connectCalls != 3 {
		t.Errorf("connect attempts = %d, want 3", fake.connectCalls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, (*sleeps)[i], want[i])
		}
	}
}

func TestConnect_GivesUpAfterMaxAttempts(t *testing.T) {
	fake := newFakePaho(codeNetworkError)
	c, _, _ := newTestClient(t, fake)

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if fake.connectCalls != 3 {
		t.Errorf("connect attempts = %d, want 3", fake.connectCalls)
	}
	if !c.LastConnectResult().Transport {
		t.Error("LastConnectResult().Transport = false, want true")
	}
}

func TestConnect_CancelledDuringBackoff(t *testing.T) {
	fake := newFakePaho(codeNetworkError)
	c, _, _ := newTestClient(t, fake)
	c.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Connect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() error = %v, want context.Canceled", err)
	}
}

func TestClose(t *testing.T) {
	fake := newFakePaho()
	c, _, _ := newTestClient(t, fake)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
	if !fake.disconnected {
		t.Error("paho Disconnect was not called")
	}
	if err := c.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Connect() after Close error = %v, want ErrClosed", err)
	}
}

func TestCloseNeverConnected(t *testing.T) {
	c, _, _ := newTestClient(t, newFakePaho())
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c, _, _ := newTestClient(t, newFakePaho())

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() before connect = %v, want ErrNotConnected", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

func TestConnectionLostAndRestored(t *testing.T) {
	fake := newFakePaho()
	c, _, _ := newTestClient(t, fake)

	var mu sync.Mutex
	var connects, disconnects int
	c.SetOnConnect(func() { mu.Lock(); connects++; mu.Unlock() })
	c.SetOnDisconnect(func(error) { mu.Lock(); disconnects++; mu.Unlock() })

	if err := c.Subscribe("hass/cover1/set"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	fake.dropConnection(errors.New("EOF"))
	if c.State() != StateDisconnected {
		t.Errorf("State() after drop = %v, want disconnected", c.State())
	}

	// paho reconnects and calls the OnConnect handler again.
	fake.Connect()

	mu.Lock()
	defer mu.Unlock()
	if connects != 2 || disconnects != 1 {
		t.Errorf("connects = %d, disconnects = %d, want 2 and 1", connects, disconnects)
	}
	if got := len(fake.subscriptions()); got != 2 {
		t.Errorf("broker subscriptions = %d, want 2 (initial + restore)", got)
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublish(t *testing.T) {
	fake := newFakePaho()
	c, _, _ := newTestClient(t, fake)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := c.Publish("hass/heat/val", "72.5"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := c.PublishRetained("hass/cover1/state", "closed"); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}

	got := fake.snapshot()
	if len(got) != 2 {
		t.Fatalf("published = %d, want 2", len(got))
	}
	if got[0].topic != "hass/heat/val" || got[0].payload != "72.5" || got[0].retained {
		t.Errorf("published[0] = %+v", got[0])
	}
	if got[1].topic != "hass/cover1/state" || got[1].payload != "closed" || !got[1].retained {
		t.Errorf("published[1] = %+v", got[1])
	}
}

func TestPublishEmptyTopic(t *testing.T) {
	c, _, _ := newTestClient(t, newFakePaho())
	if err := c.Publish("", "x"); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishDisconnected(t *testing.T) {
	c, logger, _ := newTestClient(t, newFakePaho())

	start := time.Now()
	err := c.Publish("hass/pir/state", "1")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Publish() blocked for %v while disconnected", elapsed)
	}
	if !logger.contains("publish dropped") {
		t.Error("dropped publish was not logged")
	}
}

func TestPublishSerialized(t *testing.T) {
	fake := newFakePaho()
	fake.publishDelay = 2 * time.Millisecond
	c, _, _ := newTestClient(t, fake)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Publish("hass/heat/val", "70.0"); err != nil {
				t.Errorf("Publish() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if fake.overlapped {
		t.Error("publishes overlapped on the transport")
	}
	if n := len(fake.snapshot()); n != 20 {
		t.Errorf("published = %d, want 20", n)
	}
}

// =============================================================================
// Subscribe / Dispatch Tests
// =============================================================================

func TestSubscribeIdempotent(t *testing.T) {
	fake := newFakePaho()
	c, _, _ := newTestClient(t, fake)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := c.Subscribe("hass/cover1/set"); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
	}
	if got := c.SubscriptionCount(); got != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", got)
	}
	if got := len(fake.subscriptions()); got != 1 {
		t.Errorf("broker subscriptions = %d, want 1", got)
	}
	if !c.HasSubscription("hass/cover1/set") {
		t.Error("HasSubscription() = false, want true")
	}
}

func TestSubscribeBeforeConnect(t *testing.T) {
	fake := newFakePaho()
	c, _, _ := newTestClient(t, fake)

	if err := c.Subscribe("hass/cover2/set"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if got := len(fake.subscriptions()); got != 0 {
		t.Errorf("broker subscriptions before connect = %d, want 0", got)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := fake.subscriptions(); len(got) != 1 || got[0] != "hass/cover2/set" {
		t.Errorf("broker subscriptions = %v, want [hass/cover2/set]", got)
	}
}

func TestSubscribeEmptyTopic(t *testing.T) {
	c, _, _ := newTestClient(t, newFakePaho())
	if err := c.Subscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestRegisterCallback_LastWins(t *testing.T) {
	fake := newFakePaho()
	c, _, _ := newTestClient(t, fake)

	var got []string
	first := func(msg Message) { got = append(got, "first:"+msg.Payload) }
	second := func(msg Message) { got = append(got, "second:"+msg.Payload) }

	if err := c.RegisterCallback("hass/cover1/set", first); err != nil {
		t.Fatalf("RegisterCallback() error = %v", err)
	}
	if err := c.RegisterCallback("hass/cover1/set", second); err != nil {
		t.Fatalf("RegisterCallback() error = %v", err)
	}
	if err := c.Subscribe("hass/cover1/set"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	fake.deliver("hass/cover1/set", "OPEN")

	if len(got) != 1 || got[0] != "second:OPEN" {
		t.Errorf("handled = %v, want [second:OPEN]", got)
	}
}

func TestRegisterCallback_NilHandler(t *testing.T) {
	c, _, _ := newTestClient(t, newFakePaho())
	if err := c.RegisterCallback("hass/cover1/set", nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("RegisterCallback(nil) error = %v, want ErrSubscribeFailed", err)
	}
}

func TestDispatch_SharedHandlerAndPanicRecovery(t *testing.T) {
	fake := newFakePaho()
	c, logger, _ := newTestClient(t, fake)

	var topics []string
	shared := func(msg Message) {
		if msg.Payload == "boom" {
			panic("handler exploded")
		}
		topics = append(topics, msg.Topic)
	}
	for _, topic := range []string{"hass/cover1/set", "hass/cover2/set"} {
		c.RegisterCallback(topic, shared)
		c.Subscribe(topic)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	fake.deliver("hass/cover1/set", "OPEN")
	fake.deliver("hass/cover2/set", "CLOSE")
	fake.deliver("hass/cover2/set", "boom")

	if len(topics) != 2 || topics[0] != "hass/cover1/set" || topics[1] != "hass/cover2/set" {
		t.Errorf("topics = %v", topics)
	}
	if !logger.contains("panic recovered") {
		t.Error("panic was not logged")
	}
}

func TestUseMiddleware(t *testing.T) {
	fake := newFakePaho()
	c, _, _ := newTestClient(t, fake)

	var order []string
	c.Use(func(next Handler) Handler {
		return func(msg Message) {
			order = append(order, "mw")
			next(msg)
		}
	})
	c.RegisterCallback("hass/cover1/set", func(Message) { order = append(order, "handler") })
	c.Subscribe("hass/cover1/set")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	fake.deliver("hass/cover1/set", "STOP")

	if len(order) != 2 || order[0] != "mw" || order[1] != "handler" {
		t.Errorf("order = %v, want [mw handler]", order)
	}
}

// =============================================================================
// CONNACK / Topics
// =============================================================================

func TestDescribeConnack(t *testing.T) {
	tests := []struct {
		code byte
		want string
	}{
		{0, "Connection successful"},
		{1, "Connection refused - incorrect protocol version"},
		{2, "Connection refused - invalid client identifier"},
		{3, "Connection refused - server unavailable"},
		{4, "Connection refused - bad username or password"},
		{5, "Connection refused - not authorised"},
		{6, "Connection refused - unknown failure"},
		{0x80, "Connection refused - unknown failure"},
	}

	for _, tt := range tests {
		if got := DescribeConnack(tt.code); got != tt.want {
			t.Errorf("DescribeConnack(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestConnectResult_Retryable(t *testing.T) {
	tests := []struct {
		result ConnectResult
		want   bool
	}{
		{ConnectResult{Code: CodeServerUnavailable}, true},
		{ConnectResult{Code: codeNetworkError, Transport: true}, true},
		{ConnectResult{Code: CodeBadProtocolVersion}, false},
		{ConnectResult{Code: CodeIdentifierRejected}, false},
		{ConnectResult{Code: CodeBadCredentials}, false},
		{ConnectResult{Code: CodeNotAuthorised}, false},
	}

	for _, tt := range tests {
		if got := tt.result.Retryable(); got != tt.want {
			t.Errorf("ConnectResult{Code: %d}.Retryable() = %v, want %v", tt.result.Code, got, tt.want)
		}
	}
}

func TestResultFromToken_WithoutReturnCode(t *testing.T) {
	if got := resultFromToken(plainToken{}); !got.Accepted() {
		t.Errorf("resultFromToken(nil error) = %+v, want accepted", got)
	}
	if got := resultFromToken(plainToken{err: errors.New("i/o timeout")}); !got.Transport {
		t.Errorf("resultFromToken(unknown error) = %+v, want transport failure", got)
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"CoverCommand", topics.CoverCommand(1), "hass/cover1/set"},
		{"CoverState", topics.CoverState(2), "hass/cover2/state"},
		{"CoverAvailability", topics.CoverAvailability(1), "hass/cover1/availability"},
		{"Temperature", topics.Temperature(), "hass/heat/val"},
		{"Humidity", topics.Humidity(), "hass/humidty/val"},
		{"Motion", topics.Motion(), "hass/pir/state"},
		{"CustomPrefix", NewTopics("garage").CoverState(1), "garage/cover1/state"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestBrokerURL(t *testing.T) {
	if got := brokerURL(config.MQTTBrokerConfig{Host: "h", Port: 1883}); got != "tcp://h:1883" {
		t.Errorf("brokerURL() = %q, want tcp://h:1883", got)
	}
	if got := brokerURL(config.MQTTBrokerConfig{Host: "h", Port: 8883, TLS: true}); got != "ssl://h:8883" {
		t.Errorf("brokerURL() = %q, want ssl://h:8883", got)
	}
}
