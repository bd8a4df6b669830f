package garage

import "strings"

// State is a door position as reported by its reed switch.
type State int

const (
	StateUnknown State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CommandKind identifies a door command.
type CommandKind int

const (
	CommandUnrecognized CommandKind = iota
	CommandOpen
	CommandClose
	CommandStop
)

func (k CommandKind) String() string {
	switch k {
	case CommandOpen:
		return "OPEN"
	case CommandClose:
		return "CLOSE"
	case CommandStop:
		return "STOP"
	default:
		return "UNRECOGNIZED"
	}
}

// Command is a parsed command payload.
type Command struct {
	Kind CommandKind
	// Raw is the payload as received.
	Raw string
}

// ParseCommand parses a command topic payload. Surrounding whitespace is
// ignored; the verb itself is case-sensitive, as the hub sends it upper-case.
func ParseCommand(payload string) Command {
	cmd := Command{Raw: payload}
	switch strings.TrimSpace(payload) {
	case "OPEN":
		cmd.Kind = CommandOpen
	case "CLOSE":
		cmd.Kind = CommandClose
	case "STOP":
		cmd.Kind = CommandStop
	}
	return cmd
}
