package extraction

import "fmt"

// State is a step of a single extraction attempt.
type State int

const (
	StateIdle State = iota
	StateRequested
	StateAwaitingToolCall
	StateToolCallReceived
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRequested:
		return "Requested"
	case StateAwaitingToolCall:
		return "AwaitingToolCall"
	case StateToolCallReceived:
		return "ToolCallReceived"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:             {StateRequested},
	StateRequested:        {StateAwaitingToolCall, StateFailed},
	StateAwaitingToolCall: {StateToolCallReceived, StateFailed},
	StateToolCallReceived: {StateDone},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine records the path of one attempt and refuses illegal moves.
type machine struct {
	current State
	trail   []State
}

func newMachine() *machine {
	return &machine{current: StateIdle, trail: []State{StateIdle}}
}

func (m *machine) to(next State) {
	if !canTransition(m.current, next) {
		panic(fmt.Sprintf("extraction: illegal transition %s -> %s", m.current, next))
	}
	m.current = next
	m.trail = append(m.trail, next)
}
