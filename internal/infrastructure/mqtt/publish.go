package mqtt

import (
	"fmt"
)

// Publish sends payload to topic with the configured QoS, not retained.
//
// When the client is not connected the message is dropped: the drop is
// logged and ErrNotConnected returned without blocking or queueing.
func (c *Client) Publish(topic, payload string) error {
	return c.PublishMessage(Message{Topic: topic, Payload: payload, QoS: byte(c.cfg.QoS)})
}

// PublishRetained is Publish with the retain flag set.
// Use for state topics so a restarted hub sees the current state.
func (c *Client) PublishRetained(topic, payload string) error {
	return c.PublishMessage(Message{Topic: topic, Payload: payload, QoS: byte(c.cfg.QoS), Retained: true})
}

// PublishMessage sends msg, holding the publish lock across the send and
// the acknowledgement wait so that publishes never interleave.
func (c *Client) PublishMessage(msg Message) error {
	if msg.Topic == "" {
		return ErrInvalidTopic
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	if !c.IsConnected() {
		c.logger.Warn("MQTT publish dropped, not connected", "topic", msg.Topic, "payload", msg.Payload)
		return ErrNotConnected
	}

	token := c.client.Publish(msg.Topic, msg.QoS, msg.Retained, msg.Payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, msg.Topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, msg.Topic, err)
	}

	c.logger.Debug("MQTT published", "topic", msg.Topic, "payload", msg.Payload, "retained", msg.Retained)
	return nil
}
