package gpio

import (
	"fmt"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// periphPWM drives a BCM pin with periph.io's PWM support.
type periphPWM struct {
	pin  pgpio.PinIO
	freq physic.Frequency
}

// OpenPWM returns a PWM channel on BCM pin number pin, initially at 0% duty.
func OpenPWM(pin int, hz int) (PWM, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("initialising periph host: %w", err)
	}

	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return nil, fmt.Errorf("%w: GPIO%d", ErrUnknownPin, pin)
	}

	out := &periphPWM{pin: p, freq: physic.Frequency(hz) * physic.Hertz}
	if err := out.SetDuty(0); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *periphPWM) SetDuty(percent float64) error {
	duty := pgpio.Duty(clampDuty(percent) / 100 * float64(pgpio.DutyMax))
	if err := p.pin.PWM(duty, p.freq); err != nil {
		return fmt.Errorf("setting pwm on %s: %w", p.pin.Name(), err)
	}
	return nil
}

func (p *periphPWM) Close() error {
	if err := p.pin.Halt(); err != nil {
		return fmt.Errorf("halting pwm on %s: %w", p.pin.Name(), err)
	}
	return p.pin.Out(pgpio.Low)
}
