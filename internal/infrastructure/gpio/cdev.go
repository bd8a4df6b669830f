package gpio

import (
	"fmt"
	"sync"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// CdevChip drives lines through the Linux GPIO character device.
type CdevChip struct {
	chip *gpiod.Chip

	mu    sync.Mutex
	lines map[int]*gpiod.Line
}

// OpenChip opens a GPIO character device such as "gpiochip0".
func OpenChip(name string) (*CdevChip, error) {
	chip, err := gpiod.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("opening gpio chip %s: %w", name, err)
	}
	return &CdevChip{chip: chip, lines: make(map[int]*gpiod.Line)}, nil
}

// Input requests pin as an input. When onEdge is non-nil both edges are
// watched and delivered on the driver's event goroutine.
func (c *CdevChip) Input(pin int, opts InputOptions, onEdge EdgeHandler) (Input, error) {
	reqOpts := []gpiod.LineReqOption{gpiod.AsInput}
	switch opts.Pull {
	case PullUp:
		reqOpts = append(reqOpts, gpiod.WithPullUp)
	case PullDown:
		reqOpts = append(reqOpts, gpiod.WithPullDown)
	}
	if opts.Debounce > 0 {
		reqOpts = append(reqOpts, gpiod.WithDebounce(opts.Debounce))
	}
	if onEdge != nil {
		reqOpts = append(reqOpts,
			gpiod.WithBothEdges,
			gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
				level := Low
				if evt.Type == gpiod.LineEventRisingEdge {
					level = High
				}
				onEdge(Event{Pin: evt.Offset, Level: level, Timestamp: evt.Timestamp})
			}),
		)
	}

	line, err := c.request(pin, reqOpts...)
	if err != nil {
		return nil, err
	}
	return &cdevLine{chip: c, pin: pin, line: line}, nil
}

// Output requests pin as an output driven to initial.
func (c *CdevChip) Output(pin int, initial Level) (Output, error) {
	line, err := c.request(pin, gpiod.AsOutput(int(initial)))
	if err != nil {
		return nil, err
	}
	return &cdevLine{chip: c, pin: pin, line: line}, nil
}

func (c *CdevChip) request(pin int, opts ...gpiod.LineReqOption) (*gpiod.Line, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chip == nil {
		return nil, ErrClosed
	}
	if _, taken := c.lines[pin]; taken {
		return nil, fmt.Errorf("%w: %d", ErrPinInUse, pin)
	}

	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("requesting gpio line %d: %w", pin, err)
	}
	c.lines[pin] = line
	return line, nil
}

func (c *CdevChip) release(pin int) error {
	c.mu.Lock()
	line, ok := c.lines[pin]
	delete(c.lines, pin)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return line.Close()
}

// Close releases every line and the chip. Outputs revert to the kernel default.
func (c *CdevChip) Close() error {
	c.mu.Lock()
	lines := c.lines
	chip := c.chip
	c.lines = make(map[int]*gpiod.Line)
	c.chip = nil
	c.mu.Unlock()

	var firstErr error
	for pin, line := range lines {
		if err := line.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing gpio line %d: %w", pin, err)
		}
	}
	if chip != nil {
		if err := chip.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing gpio chip: %w", err)
		}
	}
	return firstErr
}

type cdevLine struct {
	chip *CdevChip
	pin  int
	line *gpiod.Line
}

func (l *cdevLine) Read() (Level, error) {
	v, err := l.line.Value()
	if err != nil {
		return Low, fmt.Errorf("reading gpio line %d: %w", l.pin, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

func (l *cdevLine) Set(level Level) error {
	if err := l.line.SetValue(int(level)); err != nil {
		return fmt.Errorf("setting gpio line %d: %w", l.pin, err)
	}
	return nil
}

func (l *cdevLine) Close() error {
	return l.chip.release(l.pin)
}
