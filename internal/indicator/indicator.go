// Package indicator drives the RGB status LED.
package indicator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/garagepi/internal/infrastructure/gpio"
)

// Color is an RGB triple, 0-255 per channel.
type Color struct {
	R, G, B uint8
}

// Palette.
var (
	Off    = Color{0, 0, 0}
	Red    = Color{255, 0, 0}
	Green  = Color{0, 255, 0}
	Blue   = Color{0, 0, 255}
	Yellow = Color{255, 255, 0}
	Orange = Color{255, 135, 0}
	Purple = Color{255, 0, 255}
	Cyan   = Color{0, 255, 255}
)

var names = map[Color]string{
	Off:    "off",
	Red:    "red",
	Green:  "green",
	Blue:   "blue",
	Yellow: "yellow",
	Orange: "orange",
	Purple: "purple",
	Cyan:   "cyan",
}

func (c Color) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Duty converts a channel value to a PWM duty cycle in percent.
func Duty(v uint8) float64 {
	return float64(v) / 255 * 100
}

// Indicator is an RGB LED on three PWM channels.
// It is write-only: Color reports the last colour set, not an observed one.
type Indicator struct {
	mu       sync.Mutex
	channels [3]gpio.PWM
	current  Color
}

// New returns an Indicator switched off. Nil channels are skipped, which
// allows a partially wired or absent LED.
func New(red, green, blue gpio.PWM) (*Indicator, error) {
	ind := &Indicator{channels: [3]gpio.PWM{red, green, blue}}
	if err := ind.SetColor(Off); err != nil {
		return nil, err
	}
	return ind, nil
}

// Disabled returns an Indicator with no hardware attached.
func Disabled() *Indicator {
	return &Indicator{}
}

// SetColor sets all three channel duty cycles and remembers c.
func (i *Indicator) SetColor(c Color) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	duties := [3]float64{Duty(c.R), Duty(c.G), Duty(c.B)}
	var errs []error
	for idx, ch := range i.channels {
		if ch == nil {
			continue
		}
		if err := ch.SetDuty(duties[idx]); err != nil {
			errs = append(errs, err)
		}
	}
	i.current = c
	if len(errs) > 0 {
		return fmt.Errorf("setting indicator to %s: %w", c, errors.Join(errs...))
	}
	return nil
}

// Color returns the last colour set.
func (i *Indicator) Color() Color {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

// Close switches the LED off and releases the channels.
func (i *Indicator) Close() error {
	offErr := i.SetColor(Off)

	i.mu.Lock()
	defer i.mu.Unlock()
	errs := []error{offErr}
	for idx, ch := range i.channels {
		if ch == nil {
			continue
		}
		errs = append(errs, ch.Close())
		i.channels[idx] = nil
	}
	return errors.Join(errs...)
}
