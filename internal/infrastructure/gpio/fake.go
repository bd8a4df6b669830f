package gpio

import (
	"fmt"
	"sync"
	"time"
)

// Transition is one recorded change on a fake output.
type Transition struct {
	Pin   int
	Level Level
	At    time.Time
}

// FakeChip is an in-memory Chip for tests and for running without hardware.
// Inputs are driven with Drive; outputs record every Set.
type FakeChip struct {
	mu          sync.Mutex
	levels      map[int]Level
	handlers    map[int]EdgeHandler
	requested   map[int]bool
	transitions []Transition
	readErr     map[int]error
	closed      bool
}

// NewFakeChip returns an empty FakeChip with every pin low.
func NewFakeChip() *FakeChip {
	return &FakeChip{
		levels:    make(map[int]Level),
		handlers:  make(map[int]EdgeHandler),
		requested: make(map[int]bool),
		readErr:   make(map[int]error),
	}
}

func (f *FakeChip) claim(pin int) error {
	if f.closed {
		return ErrClosed
	}
	if f.requested[pin] {
		return fmt.Errorf("%w: %d", ErrPinInUse, pin)
	}
	f.requested[pin] = true
	return nil
}

// Input implements Chip.
func (f *FakeChip) Input(pin int, _ InputOptions, onEdge EdgeHandler) (Input, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.claim(pin); err != nil {
		return nil, err
	}
	if onEdge != nil {
		f.handlers[pin] = onEdge
	}
	return &fakeLine{chip: f, pin: pin}, nil
}

// Output implements Chip.
func (f *FakeChip) Output(pin int, initial Level) (Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.claim(pin); err != nil {
		return nil, err
	}
	f.levels[pin] = initial
	return &fakeLine{chip: f, pin: pin}, nil
}

// Close implements Chip.
func (f *FakeChip) Close() error {
	f.mu.Lock()
	f.closed = true
	f.handlers = make(map[int]EdgeHandler)
	f.mu.Unlock()
	return nil
}

// Drive sets an input level and fires its edge handler synchronously.
func (f *FakeChip) Drive(pin int, level Level) {
	f.mu.Lock()
	f.levels[pin] = level
	h := f.handlers[pin]
	f.mu.Unlock()

	if h != nil {
		h(Event{Pin: pin, Level: level, Timestamp: time.Duration(time.Now().UnixNano())})
	}
}

// SetLevel changes an input level without firing an edge.
func (f *FakeChip) SetLevel(pin int, level Level) {
	f.mu.Lock()
	f.levels[pin] = level
	f.mu.Unlock()
}

// FailReads makes Read on pin return err until cleared with nil.
func (f *FakeChip) FailReads(pin int, err error) {
	f.mu.Lock()
	if err == nil {
		delete(f.readErr, pin)
	} else {
		f.readErr[pin] = err
	}
	f.mu.Unlock()
}

// Level returns the current level of pin.
func (f *FakeChip) Level(pin int) Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[pin]
}

// Transitions returns the recorded output changes for pin.
func (f *FakeChip) Transitions(pin int) []Transition {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Transition
	for _, tr := range f.transitions {
		if tr.Pin == pin {
			out = append(out, tr)
		}
	}
	return out
}

// Requested reports whether pin is currently held.
func (f *FakeChip) Requested(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested[pin]
}

type fakeLine struct {
	chip *FakeChip
	pin  int
}

func (l *fakeLine) Read() (Level, error) {
	l.chip.mu.Lock()
	defer l.chip.mu.Unlock()
	if err := l.chip.readErr[l.pin]; err != nil {
		return Low, err
	}
	return l.chip.levels[l.pin], nil
}

func (l *fakeLine) Set(level Level) error {
	l.chip.mu.Lock()
	defer l.chip.mu.Unlock()
	if !l.chip.requested[l.pin] {
		return ErrClosed
	}
	l.chip.levels[l.pin] = level
	l.chip.transitions = append(l.chip.transitions, Transition{Pin: l.pin, Level: level, At: time.Now()})
	return nil
}

func (l *fakeLine) Close() error {
	l.chip.mu.Lock()
	delete(l.chip.requested, l.pin)
	delete(l.chip.handlers, l.pin)
	l.chip.mu.Unlock()
	return nil
}

// FakePWM records every duty change.
type FakePWM struct {
	Pin int

	mu     sync.Mutex
	duties []float64
	closed bool
}

// SetDuty implements PWM.
func (p *FakePWM) SetDuty(percent float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.duties = append(p.duties, clampDuty(percent))
	return nil
}

// Close implements PWM.
func (p *FakePWM) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Duty returns the last duty set, or 0.
func (p *FakePWM) Duty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.duties) == 0 {
		return 0
	}
	return p.duties[len(p.duties)-1]
}

// Changes returns how many times SetDuty succeeded.
func (p *FakePWM) Changes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.duties)
}
