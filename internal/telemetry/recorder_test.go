package telemetry

import (
	"fmt"
	"testing"
)

type logRecorder struct {
	events []string
}

func (l *logRecorder) DoorState(door int, state string) {
	l.events = append(l.events, fmt.Sprintf("state %d %s", door, state))
}
func (l *logRecorder) DoorActuation(door int, command string) {
	l.events = append(l.events, fmt.Sprintf("actuate %d %s", door, command))
}
func (l *logRecorder) CommandRejected(door int, reason string) {
	l.events = append(l.events, fmt.Sprintf("reject %d %s", door, reason))
}
func (l *logRecorder) Climate(t, h float64) {
	l.events = append(l.events, fmt.Sprintf("climate %.1f %.1f", t, h))
}
func (l *logRecorder) Motion(level int) {
	l.events = append(l.events, fmt.Sprintf("motion %d", level))
}
func (l *logRecorder) SensorReadFailed(sensor string) {
	l.events = append(l.events, "fail "+sensor)
}

func TestNewMulti(t *testing.T) {
	if _, ok := NewMulti().(Nop); !ok {
		t.Error("NewMulti() with no recorders should return Nop")
	}
	if _, ok := NewMulti(nil, nil).(Nop); !ok {
		t.Error("NewMulti(nil, nil) should return Nop")
	}

	single := &logRecorder{}
	if got := NewMulti(nil, single); got != Recorder(single) {
		t.Errorf("NewMulti(nil, r) = %T, want the recorder itself", got)
	}
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &logRecorder{}, &logRecorder{}
	m := NewMulti(a, b)

	m.DoorState(1, "open")
	m.DoorActuation(1, "OPEN")
	m.CommandRejected(2, "STOP")
	m.Climate(72.5, 40)
	m.Motion(1)
	m.SensorReadFailed("dht22")

	want := []string{
		"state 1 open",
		"actuate 1 OPEN",
		"reject 2 STOP",
		"climate 72.5 40.0",
		"motion 1",
		"fail dht22",
	}
	for _, r := range []*logRecorder{a, b} {
		if len(r.events) != len(want) {
			t.Fatalf("events = %v, want %v", r.events, want)
		}
		for i := range want {
			if r.events[i] != want[i] {
				t.Errorf("events[%d] = %q, want %q", i, r.events[i], want[i])
			}
		}
	}
}
