package gpio

import (
	"errors"
	"testing"
)

func TestFakeChip_OutputRecordsTransitions(t *testing.T) {
	chip := NewFakeChip()
	out, err := chip.Output(17, Low)
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}

	out.Set(High)
	out.Set(Low)

	got := chip.Transitions(17)
	if len(got) != 2 || got[0].Level != High || got[1].Level != Low {
		t.Errorf("Transitions() = %+v, want High then Low", got)
	}
	if chip.Level(17) != Low {
		t.Errorf("Level() = %v, want low", chip.Level(17))
	}
}

func TestFakeChip_InputEdges(t *testing.T) {
	chip := NewFakeChip()
	var events []Event
	in, err := chip.Input(5, InputOptions{Pull: PullUp}, func(e Event) { events = append(events, e) })
	if err != nil {
		t.Fatalf("Input() error = %v", err)
	}

	chip.Drive(5, High)
	level, err := in.Read()
	if err != nil || level != High {
		t.Errorf("Read() = %v, %v, want high, nil", level, err)
	}
	if len(events) != 1 || events[0].Pin != 5 || events[0].Level != High {
		t.Errorf("events = %+v, want one high edge on pin 5", events)
	}

	chip.SetLevel(5, Low)
	if len(events) != 1 {
		t.Errorf("SetLevel() fired an edge")
	}
}

func TestFakeChip_PinInUse(t *testing.T) {
	chip := NewFakeChip()
	line, err := chip.Output(22, Low)
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if _, err := chip.Input(22, InputOptions{}, nil); !errors.Is(err, ErrPinInUse) {
		t.Errorf("Input() on held pin error = %v, want ErrPinInUse", err)
	}

	line.Close()
	if _, err := chip.Input(22, InputOptions{}, nil); err != nil {
		t.Errorf("Input() after release error = %v", err)
	}
}

func TestFakeChip_ReadError(t *testing.T) {
	chip := NewFakeChip()
	in, _ := chip.Input(6, InputOptions{}, nil)
	boom := errors.New("boom")

	chip.FailReads(6, boom)
	if _, err := in.Read(); !errors.Is(err, boom) {
		t.Errorf("Read() error = %v, want boom", err)
	}
	chip.FailReads(6, nil)
	if _, err := in.Read(); err != nil {
		t.Errorf("Read() error = %v, want nil", err)
	}
}

func TestClampDuty(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-5, 0},
		{0, 0},
		{52.9, 52.9},
		{100, 100},
		{140, 100},
	}
	for _, tt := range tests {
		if got := clampDuty(tt.in); got != tt.want {
			t.Errorf("clampDuty(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFakePWM(t *testing.T) {
	p := &FakePWM{Pin: 23}
	p.SetDuty(50)
	p.SetDuty(120)
	if p.Duty() != 100 || p.Changes() != 2 {
		t.Errorf("Duty() = %v, Changes() = %d, want 100 and 2", p.Duty(), p.Changes())
	}
	p.Close()
	if err := p.SetDuty(10); !errors.Is(err, ErrClosed) {
		t.Errorf("SetDuty() after Close error = %v, want ErrClosed", err)
	}
}

func TestLevelString(t *testing.T) {
	if High.String() != "high" || Low.String() != "low" {
		t.Errorf("Level strings = %q/%q", High.String(), Low.String())
	}
}
