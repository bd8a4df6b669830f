package main

import (
	"errors"
	"fmt"

	"github.com/nerrad567/garagepi/internal/indicator"
	"github.com/nerrad567/garagepi/internal/infrastructure/config"
	"github.com/nerrad567/garagepi/internal/infrastructure/gpio"
	"github.com/nerrad567/garagepi/internal/infrastructure/logging"
)

// hardware is the GPIO chip and status LED shared by all components.
type hardware struct {
	chip      gpio.Chip
	indicator *indicator.Indicator
	log       *logging.Logger
}

// openHardware opens the GPIO chip and the LED's PWM channels. With
// simulate set, in-memory fakes stand in for both.
func openHardware(cfg *config.Config, simulate bool, log *logging.Logger) (*hardware, error) {
	hw := &hardware{log: log}

	if simulate {
		hw.chip = gpio.NewFakeChip()
		log.Warn("running with simulated GPIO")
	} else {
		chip, err := gpio.OpenChip(cfg.GPIO.Chip)
		if err != nil {
			return nil, fmt.Errorf("opening GPIO chip %s: %w", cfg.GPIO.Chip, err)
		}
		hw.chip = chip
	}

	if !cfg.Indicator.Enabled {
		hw.indicator = indicator.Disabled()
		log.Info("status LED disabled")
		return hw, nil
	}

	pins := []int{cfg.Indicator.RedPin, cfg.Indicator.GreenPin, cfg.Indicator.BluePin}
	channels := make([]gpio.PWM, 0, len(pins))
	for _, pin := range pins {
		var ch gpio.PWM
		if simulate {
			ch = &gpio.FakePWM{Pin: pin}
		} else {
			var err error
			ch, err = gpio.OpenPWM(pin, cfg.Indicator.Frequency)
			if err != nil {
				for _, opened := range channels {
					opened.Close()
				}
				hw.chip.Close()
				return nil, fmt.Errorf("opening LED pin %d: %w", pin, err)
			}
		}
		channels = append(channels, ch)
	}

	ind, err := indicator.New(channels[0], channels[1], channels[2])
	if err != nil {
		hw.chip.Close()
		return nil, fmt.Errorf("initialising status LED: %w", err)
	}
	hw.indicator = ind
	return hw, nil
}

// Close switches the LED off and releases the chip.
func (h *hardware) Close() {
	if err := errors.Join(h.indicator.Close(), h.chip.Close()); err != nil {
		h.log.Error("error releasing hardware", "error", err)
	}
}
