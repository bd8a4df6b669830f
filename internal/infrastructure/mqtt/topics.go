package mqtt

import "fmt"

// DefaultTopicPrefix is the Home Assistant namespace used by the hub.
const DefaultTopicPrefix = "hass"

// Topics provides builders for GaragePi MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.NewTopics("hass")
//	topics.CoverCommand(1) // "hass/cover1/set"
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders rooted at prefix, or DefaultTopicPrefix when empty.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// CoverCommand returns the topic the hub publishes door commands on.
//
// Example: hass/cover1/set
func (t Topics) CoverCommand(door int) string {
	return fmt.Sprintf("%s/cover%d/set", t.Prefix, door)
}

// CoverState returns the door state topic.
//
// Example: hass/cover1/state
func (t Topics) CoverState(door int) string {
	return fmt.Sprintf("%s/cover%d/state", t.Prefix, door)
}

// CoverAvailability returns the door availability topic.
//
// Example: hass/cover1/availability
func (t Topics) CoverAvailability(door int) string {
	return fmt.Sprintf("%s/cover%d/availability", t.Prefix, door)
}

// Temperature returns the temperature topic (degrees Fahrenheit).
//
// Example: hass/heat/val
func (t Topics) Temperature() string {
	return t.Prefix + "/heat/val"
}

// Humidity returns the relative humidity topic.
// The spelling matches what deployed hub configurations subscribe to.
//
// Example: hass/humidty/val
func (t Topics) Humidity() string {
	return t.Prefix + "/humidty/val"
}

// Motion returns the PIR sensor topic.
//
// Example: hass/pir/state
func (t Topics) Motion() string {
	return t.Prefix + "/pir/state"
}
