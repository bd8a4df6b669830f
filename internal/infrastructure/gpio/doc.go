// Package gpio is the digital and PWM I/O layer of GaragePi.
//
// Digital lines (door relays, reed switches, the PIR sensor) go through the
// Linux GPIO character device via go-gpiocdev; edge events are delivered on
// the driver's goroutine. The RGB indicator uses periph.io PWM.
//
// FakeChip and FakePWM implement the same interfaces in memory so the
// controller logic can be exercised without a Raspberry Pi.
package gpio
