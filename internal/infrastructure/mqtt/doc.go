// Package mqtt provides the broker connection for GaragePi.
//
// This package manages:
//   - Connection to the broker with a bounded retry loop and readable CONNACK reasons
//   - Serialized publishing (one publish in flight at a time)
//   - A topic subscription set restored on every reconnect
//   - Exact-topic dispatch of inbound messages through a middleware chain
//
// # Architecture
//
// The controller has exactly one broker connection. Door controllers and
// sensor pollers publish through it; door command topics are routed back
// to their door by RegisterCallback.
//
//	Home Assistant ↔ MQTT Broker ↔ GaragePi (doors, climate, motion)
//
// Inbound messages are delivered as immutable Message values. Handlers
// run on paho's goroutines and must hand work off instead of blocking.
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	topics := mqtt.NewTopics(cfg.Topics.Prefix)
//	client.RegisterCallback(topics.CoverCommand(1), func(msg mqtt.Message) {
//	    commands <- msg
//	})
//	client.Subscribe(topics.CoverCommand(1))
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.PublishRetained(topics.CoverState(1), "closed")
package mqtt
