package mqtt

import "fmt"

// Message is an inbound or outbound MQTT message.
//
// It is a value type: handlers receive their own copy and cannot
// affect what other handlers or middleware observe.
type Message struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

func (m Message) String() string {
	return fmt.Sprintf("%s (%q)", m.Topic, m.Payload)
}

// Handler processes one inbound message.
//
// Handlers run on paho's dispatch goroutine and must not block;
// hand work off over a channel instead.
type Handler func(msg Message)

// Middleware wraps a Handler with cross-cutting behaviour.
type Middleware func(next Handler) Handler

// Chain applies middleware to h. The first middleware is the outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Recover stops a panicking handler from taking down the dispatch goroutine.
func Recover(logger Logger) Middleware {
	return func(next Handler) Handler {
		return func(msg Message) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic,
						"panic", r,
					)
				}
			}()
			next(msg)
		}
	}
}

// LogReceived logs every inbound message at debug level.
func LogReceived(logger Logger) Middleware {
	return func(next Handler) Handler {
		return func(msg Message) {
			logger.Debug("MQTT message received", "topic", msg.Topic, "payload", msg.Payload)
			next(msg)
		}
	}
}
