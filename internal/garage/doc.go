// Package garage drives garage door openers over MQTT.
//
// Each Door pairs a relay wired across the opener's push-button with a reed
// switch that reports whether the door is closed. Commands arrive on
// "<prefix>/coverN/set" as OPEN, CLOSE or STOP; state is published to
// "<prefix>/coverN/state" as "open" or "closed".
//
// The opener has a single toggle input, so OPEN and CLOSE both produce the
// same relay pulse. The command only selects the indicator colour (green for
// OPEN, red for CLOSE). STOP cannot be honoured and is logged.
//
// Commands for a door are serialized through a bounded queue and a single
// worker goroutine: a pulse and its settle time complete before the next
// command is taken. Doors are independent of each other.
//
// State is derived from the reed switch on every edge and published only when
// it differs from the last published value. A failed read leaves the door in
// StateUnknown without publishing.
package garage
