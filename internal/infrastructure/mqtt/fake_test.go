package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a completed token with an optional CONNACK code and delay.
type fakeToken struct {
	err        error
	returnCode byte
	delay      time.Duration
	onDone     func()
	once       sync.Once
}

func (t *fakeToken) finish() {
	t.once.Do(func() {
		if t.delay > 0 {
			time.Sleep(t.delay)
		}
		if t.onDone != nil {
			t.onDone()
		}
	})
}

func (t *fakeToken) Wait() bool                     { t.finish(); return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { t.finish(); return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) ReturnCode() byte               { return t.returnCode }
func (t *fakeToken) SessionPresent() bool           { return false }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// plainToken has no ReturnCode method, like paho's publish tokens.
type plainToken struct{ err error }

func (t plainToken) Wait() bool                     { return true }
func (t plainToken) WaitTimeout(time.Duration) bool { return true }
func (t plainToken) Error() error                   { return t.err }
func (t plainToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakePaho implements pahomqtt.Client in memory.
type fakePaho struct {
	opts *pahomqtt.ClientOptions

	mu           sync.Mutex
	connackCodes []byte // consumed one per Connect; last one repeats
	connectCalls int
	open         bool
	disconnected bool
	subscribed   []string
	handlers     map[string]pahomqtt.MessageHandler
	published    []published

	publishDelay time.Duration
	inflight     int
	overlapped   bool
}

func newFakePaho(codes ...byte) *fakePaho {
	return &fakePaho{connackCodes: codes, handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) factory(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	f.opts = opts
	return f
}

func (f *fakePaho) IsConnected() bool      { return f.IsConnectionOpen() }
func (f *fakePaho) IsConnectionOpen() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.open }

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	code := CodeAccepted
	if len(f.connackCodes) > 0 {
		idx := min(f.connectCalls, len(f.connackCodes)-1)
		code = f.connackCodes[idx]
	}
	f.connectCalls++
	f.open = code == CodeAccepted
	f.mu.Unlock()

	if code != CodeAccepted {
		err := packetsErr(code)
		return &fakeToken{err: err, returnCode: code}
	}
	if f.opts != nil && f.opts.OnConnect != nil {
		f.opts.OnConnect(f)
	}
	return &fakeToken{returnCode: CodeAccepted}
}

func packetsErr(code byte) error {
	if code == codeNetworkError {
		return errors.New("dial tcp: connection refused")
	}
	return fmt.Errorf("%s", strings.ToLower(DescribeConnack(code)))
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	f.open = false
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	f.inflight++
	if f.inflight > 1 {
		f.overlapped = true
	}
	f.published = append(f.published, published{topic: topic, qos: qos, retained: retained, payload: fmt.Sprint(payload)})
	delay := f.publishDelay
	f.mu.Unlock()

	return &fakeToken{delay: delay, onDone: func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}}
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	f.subscribed = append(f.subscribed, topic)
	f.handlers[topic] = callback
	f.mu.Unlock()
	return plainToken{}
}

func (f *fakePaho) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	for topic, qos := range filters {
		f.Subscribe(topic, qos, callback)
	}
	return plainToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	f.mu.Unlock()
	return plainToken{}
}

func (f *fakePaho) AddRoute(topic string, callback pahomqtt.MessageHandler) {
	f.mu.Lock()
	f.handlers[topic] = callback
	f.mu.Unlock()
}

func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

// deliver simulates an inbound message on topic.
func (f *fakePaho) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h != nil {
		h(f, &fakeMessage{topic: topic, payload: []byte(payload)})
	}
}

func (f *fakePaho) dropConnection(err error) {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	if f.opts != nil && f.opts.OnConnectionLost != nil {
		f.opts.OnConnectionLost(f, err)
	}
}

func (f *fakePaho) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

func (f *fakePaho) subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// recordingLogger implements Logger and keeps every line.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args...) }

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
