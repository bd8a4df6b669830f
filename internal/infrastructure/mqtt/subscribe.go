package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe adds topic to the subscription set.
//
// It is idempotent. When connected the broker subscription is made
// immediately; otherwise it is made on the next connect.
func (c *Client) Subscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.subMu.Lock()
	_, exists := c.subscriptions[topic]
	c.subscriptions[topic] = struct{}{}
	c.subMu.Unlock()

	if exists || !c.IsConnected() {
		return nil
	}

	if err := c.subscribeBroker(topic); err != nil {
		c.subMu.Lock()
		delete(c.subscriptions, topic)
		c.subMu.Unlock()
		return err
	}
	return nil
}

// RegisterCallback routes messages on topic to handler.
//
// There is exactly one handler per topic; a later registration replaces
// the earlier one. One handler may serve several topics.
func (c *Client) RegisterCallback(topic string, handler Handler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	c.subMu.Lock()
	c.handlers[topic] = handler
	c.subMu.Unlock()
	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if topic is in the subscription set.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}

func (c *Client) subscribeBroker(topic string) error {
	token := c.client.Subscribe(topic, byte(c.cfg.QoS), c.dispatch)
	if !token.WaitTimeout(defaultSubscribeTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, defaultSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	c.logger.Debug("MQTT subscribed", "topic", topic)
	return nil
}

// dispatch is the single paho message handler. It copies the message into
// an immutable Message and invokes the handler registered for its topic.
func (c *Client) dispatch(_ pahomqtt.Client, m pahomqtt.Message) {
	msg := Message{
		Topic:    m.Topic(),
		Payload:  string(m.Payload()),
		QoS:      m.Qos(),
		Retained: m.Retained(),
	}

	c.subMu.RLock()
	handler, ok := c.handlers[msg.Topic]
	mws := c.middleware
	c.subMu.RUnlock()

	if !ok {
		c.logger.Debug("MQTT message with no handler", "topic", msg.Topic, "payload", msg.Payload)
		return
	}

	Chain(handler, mws...)(msg)
}
