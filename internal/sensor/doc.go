// Package sensor publishes the garage's ambient sensors.
//
// ClimatePoller reads a DHT22 on a fixed interval and publishes temperature
// in degrees Fahrenheit and relative humidity, each formatted with one
// fractional digit and only when the value changed. The DHT22 protocol is
// unreliable, so each cycle retries a bounded number of times and a cycle
// that still fails is skipped.
//
// MotionSensor publishes the PIR output level on every transition.
package sensor
